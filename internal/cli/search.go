package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/quill/internal/journal"
	"github.com/roach88/quill/internal/rank"
	"github.com/roach88/quill/internal/search"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	From    string
	To      string
	Types   []string
	Limit   int
	Explain bool
}

type resultView struct {
	EntryID    int64    `json:"entry_id"`
	Date       string   `json:"date"`
	Type       string   `json:"type"`
	Snippet    string   `json:"snippet"`
	Highlights [][2]int `json:"highlights"`
	Score      float64  `json:"score"`
}

type searchView struct {
	Items     []resultView `json:"items"`
	Total     int          `json:"total"`
	Truncated bool         `json:"truncated"`
	Sanitized bool         `json:"sanitized"`
	Query     string       `json:"query,omitempty"`
}

func (v searchView) String() string {
	var b strings.Builder
	if v.Query != "" {
		b.WriteString(v.Query)
		b.WriteString("\n")
	}
	for _, r := range v.Items {
		fmt.Fprintf(&b, "%s %-7s %.3f  %s\n", r.Date, r.Type, r.Score, mark(r.Snippet, r.Highlights))
	}
	fmt.Fprintf(&b, "%d of %d matches", len(v.Items), v.Total)
	if v.Truncated {
		b.WriteString(" (query truncated)")
	}
	if v.Sanitized {
		b.WriteString(" (query syntax read literally)")
	}
	return b.String()
}

// mark wraps each highlighted range of s in brackets.
func mark(s string, highlights [][2]int) string {
	var b strings.Builder
	last := 0
	for _, h := range highlights {
		if h[0] < last || h[1] > len(s) {
			continue
		}
		b.WriteString(s[last:h[0]])
		b.WriteString("[")
		b.WriteString(s[h[0]:h[1]])
		b.WriteString("]")
		last = h[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search entries",
		Long: `Search entries by content, best match first.

Bare words must all appear (matching is case-insensitive and stemmed).
"quoted words" must appear together in order, word* matches any word with
that prefix, and -word excludes entries containing the word.

Example:
  quill search '"daily walk" -rain'
  quill search 'gard*' --type weekly --from 2025-01-01`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "earliest entry date (inclusive)")
	cmd.Flags().StringVar(&opts.To, "to", "", "latest entry date (inclusive)")
	cmd.Flags().StringSliceVar(&opts.Types, "type", nil, "entry types to include (repeatable)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum results (0 uses the configured default)")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "print the parsed query")

	return cmd
}

func runSearch(opts *SearchOptions, cmd *cobra.Command, text string) error {
	f, err := opts.filters()
	if err != nil {
		return err
	}

	svc, err := opts.openService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close(cmd.Context())

	res, err := svc.Search(cmd.Context(), text, f, opts.Limit)
	if err != nil {
		return journalExit("search failed", err)
	}

	v := searchView{
		Items:     make([]resultView, len(res.Items)),
		Total:     res.Total,
		Truncated: res.Truncated,
		Sanitized: res.Sanitized,
	}
	if opts.Explain {
		v.Query = strings.TrimSuffix(res.Query.String(), "\n")
	}
	for i, r := range res.Items {
		v.Items[i] = resultView{
			EntryID:    r.EntryID,
			Date:       string(r.Date),
			Type:       string(r.Type),
			Snippet:    r.Snippet,
			Highlights: r.Highlights,
			Score:      r.Score,
		}
	}
	return opts.formatter(cmd).Success(v)
}

func (o *SearchOptions) filters() (search.Filters, error) {
	var f search.Filters
	if o.From != "" {
		d, err := journal.ParseDate(o.From)
		if err != nil {
			return f, journalExit("invalid --from", err)
		}
		f.From = d
	}
	if o.To != "" {
		d, err := journal.ParseDate(o.To)
		if err != nil {
			return f, journalExit("invalid --to", err)
		}
		f.To = d
	}
	for _, s := range o.Types {
		t, err := journal.ParseType(s)
		if err != nil {
			return f, journalExit("invalid --type", err)
		}
		f.Types = append(f.Types, t)
	}
	return f, nil
}

type suggestView []rank.Suggestion

func (v suggestView) String() string {
	if len(v) == 0 {
		return "no suggestions"
	}
	lines := make([]string, len(v))
	for i, s := range v {
		lines[i] = fmt.Sprintf("%-30s %3dx  %s", s.Query, s.Count, s.LastSearched.Format("2006-01-02 15:04"))
	}
	return strings.Join(lines, "\n")
}

// NewSuggestCommand creates the suggest command.
func NewSuggestCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "suggest [prefix]",
		Short: "Suggest earlier searches",
		Long: `Suggest earlier searches, ranked by how often and how recently they
were run. A prefix filters suggestions with fuzzy matching.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			svc, err := rootOpts.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close(cmd.Context())

			got, err := svc.Suggest(cmd.Context(), prefix, limit)
			if err != nil {
				return journalExit("suggest failed", err)
			}
			return rootOpts.formatter(cmd).Success(suggestView(got))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum suggestions")
	return cmd
}
