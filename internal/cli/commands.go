package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/chain"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

// errChainInvalid makes verify exit non-zero without cobra printing usage.
var errChainInvalid = errors.New("chain failed verification")

// ─── verify ─────────────────────────────────────────────────────────────────

func newVerifyCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "verify FILE",
		Short: "Replay the hash chain and report violations",
		Long: `Recompute every hash in timestamp order and check every link back to the
genesis hash. Exits non-zero when the chain is broken.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadEntries(cmd, args[0])
			if err != nil {
				return err
			}

			report := chain.Verify(entries)
			if all {
				report = chain.VerifyAll(entries)
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.Valid {
				return errChainInvalid
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Report every violation instead of stopping at the first")
	return cmd
}

// ─── root ───────────────────────────────────────────────────────────────────

func newRootHashCmd() *cobra.Command {
	var (
		date    string
		tz      string
		entryID string
	)
	cmd := &cobra.Command{
		Use:   "root FILE",
		Short: "Compute the Merkle root of one calendar day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadEntries(cmd, args[0])
			if err != nil {
				return err
			}
			day, err := models.ParseDay(date)
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("load timezone: %w", err)
			}

			tree := chain.DailyTree(entries, day, loc)
			out := map[string]any{
				"date":      day.String(),
				"timeZone":  loc.String(),
				"root":      tree.Root,
				"leafCount": tree.LeafCount,
			}

			if entryID != "" {
				sorted := chain.SortByTimestamp(entries)
				idx := chain.IndexOf(sorted, entryID)
				if idx < 0 {
					return fmt.Errorf("%w: %s", models.ErrEntryNotFound, entryID)
				}
				leaf := sorted[idx].CurrentHash
				pos := -1
				for i := 0; i < tree.LeafCount; i++ {
					if tree.Levels[0][i] == leaf {
						pos = i
						break
					}
				}
				if pos < 0 {
					return fmt.Errorf("entry %s is not on %s", entryID, day)
				}
				proof, err := tree.Proof(pos)
				if err != nil {
					return err
				}
				out["entryId"], out["leaf"], out["proof"] = entryID, leaf, proof
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to commit, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&tz, "tz", "UTC", "IANA zone that defines the day boundaries")
	cmd.Flags().StringVarP(&entryID, "entry", "e", "", "Also print an inclusion proof for this entry")
	cmd.MarkFlagRequired("date")
	return cmd
}

// ─── scan ───────────────────────────────────────────────────────────────────

func newScanCmd() *cobra.Command {
	var (
		futureSkew time.Duration
		tolerance  time.Duration
		ceiling    string
	)
	cmd := &cobra.Command{
		Use:   "scan FILE",
		Short: "Run the tamper heuristics",
		Long: `Flag future timestamps, timestamp regressions, unusually large or negative amounts and duplicate ids. Advisory only.

Regressions are judged in file order. An export from the service lists entries
by timestamp, so a regression the service reports in append order will not
show up here.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadEntries(cmd, args[0])
			if err != nil {
				return err
			}

			cfg := chain.DefaultHeuristics()
			cfg.FutureSkew = futureSkew
			cfg.RegressionTolerance = tolerance
			if ceiling != "" {
				if cfg.AmountCeiling, err = decimal.NewFromString(ceiling); err != nil {
					return fmt.Errorf("invalid ceiling %q: %w", ceiling, err)
				}
			}
			return printJSON(cmd, chain.Scan(entries, cfg))
		},
	}
	cmd.Flags().DurationVar(&futureSkew, "future-skew", time.Minute, "Allowed clock skew into the future")
	cmd.Flags().DurationVar(&tolerance, "regression-tolerance", 5*time.Minute, "Allowed backwards step between consecutive entries")
	cmd.Flags().StringVar(&ceiling, "ceiling", "", "Amount above which entries are flagged (default 10000000)")
	return cmd
}

// ─── hash ───────────────────────────────────────────────────────────────────

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash FILE",
		Short: "Print stored and recomputed hashes for each entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadEntries(cmd, args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTORED\tCOMPUTED\tOK")
			for _, e := range chain.SortByTimestamp(entries) {
				computed := chain.HashEntry(e)
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", e.ID, e.CurrentHash, computed, computed == e.CurrentHash)
			}
			return w.Flush()
		},
	}
}

// ─── rechain ────────────────────────────────────────────────────────────────

func newRechainCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "rechain FILE",
		Short: "Print the export with hashes recomputed from an entry onwards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadEntries(cmd, args[0])
			if err != nil {
				return err
			}

			idx := 0
			if from != "" {
				if idx = chain.IndexOf(chain.SortByTimestamp(entries), from); idx < 0 {
					return fmt.Errorf("%w: %s", models.ErrEntryNotFound, from)
				}
			}
			return printJSON(cmd, chain.Rechain(entries, idx))
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Entry id to start from (default: genesis)")
	return cmd
}
