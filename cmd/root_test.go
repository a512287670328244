package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichewatch/nichewatch/internal/crawl"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"scrape", "ingest", "analyze", "worker", "runs", "score", "alerts", "export", "status"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "nichewatch", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestScrapeCommand_Flags(t *testing.T) {
	flag := scrapeCmd.Flags().Lookup("platform")
	require.NotNil(t, flag, "scrape command should have --platform flag")
	assert.Equal(t, "gumroad", flag.DefValue)

	flag = scrapeCmd.Flags().Lookup("output")
	require.NotNil(t, flag, "scrape command should have --output flag")
	assert.Equal(t, "artifacts", flag.DefValue)
}

func TestScoreCommand_HasTrendSubcommand(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range scoreCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["trend"], "score should have subcommand trend")
}

func TestExportCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"format", "what", "output", "limit"} {
		flag := exportCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "export should have --%s flag", flagName)
	}
}

func TestRunsListCommand_Flags(t *testing.T) {
	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "runs list should have --limit flag")
	assert.Equal(t, "50", flag.DefValue)
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "gumroad-design-icons.json", artifactName(crawl.Target{
		Platform: "gumroad", Category: "design", Subcategory: "icons",
	}))
	assert.Equal(t, "gumroad-other.json", artifactName(crawl.Target{
		Platform: "gumroad", Category: "other",
	}))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "0123abcd", truncateID("0123abcd-ffff-eeee"))
	assert.Equal(t, "short", truncateID("short"))
}
