package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

var (
	searchUser    string
	searchSources string
	searchPKB     bool
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the enabled sources",
	Long: `Runs one query against the chosen sources in parallel and prints the
merged results. Sources answer in the order given by --sources; the
personal knowledge base (--pkb) always comes last.

Sources: web, wiki, ddg`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchUser, "user", "u", "", "search as this user")
	searchCmd.Flags().StringVarP(&searchSources, "sources", "s", "web,wiki,ddg",
		"comma-separated external sources in merge order")
	searchCmd.Flags().BoolVar(&searchPKB, "pkb", true, "include the user's documents")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

type searchOutput struct {
	Results     []searchResultOutput `json:"results"`
	TimeTakenMs int64                `json:"time_taken_ms"`
}

type searchResultOutput struct {
	Source  string `json:"source"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	if services == nil || services.Search == nil {
		return errors.New("search service not configured")
	}

	user, err := lookupUser(cmd.Context(), searchUser)
	if err != nil {
		return err
	}

	req := domain.SearchRequest{UserID: user.ID, Query: args[0], PKB: searchPKB}
	for _, name := range strings.Split(searchSources, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		kind, err := domain.ParseSourceKind(name)
		if err != nil {
			return err
		}
		if kind == domain.SourcePKB {
			req.PKB = true
			continue
		}
		req.Sources = append(req.Sources, kind)
	}

	start := time.Now()
	results, err := services.Search.Search(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	elapsed := time.Since(start)

	if searchJSON {
		return outputSearchJSON(cmd, results, elapsed)
	}
	return outputSearchTable(cmd, results, elapsed)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult, elapsed time.Duration) error {
	out := searchOutput{
		Results:     make([]searchResultOutput, len(results)),
		TimeTakenMs: elapsed.Milliseconds(),
	}
	for i, r := range results {
		out.Results[i] = searchResultOutput{
			Source:  r.Label,
			Kind:    string(r.Source),
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Snippet,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult, elapsed time.Duration) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Printf("Results (%d in %s):\n\n", len(results), elapsed.Round(time.Millisecond))
	for i := range results {
		cmd.Printf("  [%d] %s\n", i+1, results[i].Title)
		cmd.Printf("      %s | %s\n", results[i].Label, results[i].URL)
		if results[i].Snippet != "" {
			cmd.Printf("      %s\n", results[i].Snippet)
		}
		cmd.Println()
	}
	return nil
}
