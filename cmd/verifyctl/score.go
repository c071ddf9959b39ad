package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"carbon-scribe/verification-engine/internal/compliance"
	"carbon-scribe/verification-engine/internal/credits"
	"carbon-scribe/verification-engine/internal/emissions"
	"carbon-scribe/verification-engine/internal/engine"
	"carbon-scribe/verification-engine/internal/reports/export"
	"carbon-scribe/verification-engine/internal/tiers"
	"carbon-scribe/verification-engine/internal/verification"
)

var scoreCmd = &cobra.Command{
	Use:   "score <extraction.json>",
	Short: "Score one extracted document",
	Long: `Parse an ExtractedData payload, classify its line items and print the
resulting verification run.

Examples:
  # Score with the free tier and auto-detected frameworks
  verifyctl score invoice.json

  # Score for an Indian steel exporter on the professional tier
  verifyctl score invoice.json --profile profile.json --tier professional

  # Force a framework set and print a CSV row
  verifyctl score invoice.json --tier enterprise --frameworks CBAM,GHG_PROTOCOL --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("profile", "", "path to an organization profile JSON file")
	f.String("frameworks", "", "comma-separated framework override (e.g., CBAM,CSRD)")
	f.String("tier", "free", "subscription tier: free, starter, professional or enterprise")
	f.Bool("iot", false, "activity data is corroborated by IoT telemetry")
	f.String("subject", "local", "subject id stamped on the run")
	f.String("format", "json", "output format: json or csv")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	profilePath, _ := f.GetString("profile")
	frameworks, _ := f.GetString("frameworks")
	tierName, _ := f.GetString("tier")
	iot, _ := f.GetBool("iot")
	subject, _ := f.GetString("subject")
	format, _ := f.GetString("format")

	tier, err := tiers.Parse(tierName)
	if err != nil {
		return err
	}
	override := compliance.ParseFrameworks(frameworks)
	if len(override) > 0 && !tier.Capabilities().FrameworkOverride {
		return fmt.Errorf("%w: framework override on %s tier", tiers.ErrFeatureNotAvailable, tier)
	}

	payload, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read extraction: %w", err)
	}
	doc, err := emissions.ParseExtractedData(payload)
	if err != nil {
		return err
	}

	var profile compliance.OrganizationProfile
	if profilePath != "" {
		if profile, err = readProfile(profilePath); err != nil {
			return err
		}
	}

	evaluator, err := newEvaluator()
	if err != nil {
		return err
	}

	run, err := evaluator.Evaluate(engine.EvaluateRequest{
		SubjectID:   subject,
		Evidence:    emissions.BuildEvidence(doc, subject, time.Now().UTC(), nil),
		Profile:     profile,
		Frameworks:  override,
		IoTAdjusted: iot,
		Tier:        tier,
	})
	if err != nil {
		return err
	}

	return writeRun(cmd.OutOrStdout(), run, format)
}

func newEvaluator() (*engine.Evaluator, error) {
	scorer, err := verification.NewScorer(cfg.Scoring.Weights, cfg.Scoring.Thresholds)
	if err != nil {
		return nil, err
	}
	creditEngine, err := credits.NewEngine(cfg.Scoring.Grades)
	if err != nil {
		return nil, err
	}
	return engine.NewEvaluator(scorer, creditEngine), nil
}

func readProfile(path string) (compliance.OrganizationProfile, error) {
	var profile compliance.OrganizationProfile
	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("read profile: %w", err)
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("parse profile: %w", err)
	}
	return profile, nil
}

func writeRun(w io.Writer, run *verification.Run, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case "csv":
		exporter := export.NewCSVExporter(w, export.DefaultCSVOptions())
		return exporter.WriteRuns([]verification.Run{*run})
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
