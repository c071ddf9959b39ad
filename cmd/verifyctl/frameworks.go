package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"carbon-scribe/verification-engine/internal/compliance"
)

var frameworksCmd = &cobra.Command{
	Use:   "frameworks",
	Short: "Show which reporting frameworks apply to an organization",
	RunE:  runFrameworks,
}

func init() {
	f := frameworksCmd.Flags()
	f.String("country", "", "ISO country code or name")
	f.String("sector", "", "industry sector (e.g., steel, cement)")
	f.String("size", "", "organization size: small, medium, large or large-listed")
	f.Bool("exports-eu", false, "exports goods to the EU")
	f.Bool("seeking-finance", false, "seeking green finance")
	f.Bool("net-zero", false, "has a public net-zero target")

	rootCmd.AddCommand(frameworksCmd)
}

func runFrameworks(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	var profile compliance.OrganizationProfile
	profile.Country, _ = f.GetString("country")
	profile.Sector, _ = f.GetString("sector")
	profile.Size, _ = f.GetString("size")
	profile.ExportsToEU, _ = f.GetBool("exports-eu")
	profile.SeekingFinance, _ = f.GetBool("seeking-finance")
	profile.HasNetZeroTarget, _ = f.GetBool("net-zero")

	resolution, err := compliance.Resolve(profile.Normalize(), nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, id := range resolution.Frameworks {
		fmt.Fprintf(out, "%-14s %s\n", id, compliance.Name(id))
	}
	fmt.Fprintf(out, "\n%s\n", resolution.Disclaimer)
	return nil
}
