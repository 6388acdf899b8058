// ragbench runs a labeled query set against a running API instance and
// reports Recall@K, nDCG@K and MRR@K.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/clinical-rag/internal/benchmark"
	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr       string
		topK       int
		alpha      float64
		matchBy    string
		reportPath string
		corpusPath string
		reset      bool
	)

	cmd := &cobra.Command{
		Use:   "ragbench <dataset.json|dataset.jsonl>",
		Short: "Benchmark retrieval quality against a running API",
		Long: `ragbench replays a labeled query set against the search API and
reports Recall@K, nDCG@K and MRR@K per query and aggregated.

The dataset is a JSON array or JSONL stream of cases:

  {"query": "sepsis fluids", "relevant_ids": ["guide#p=3"]}
  {"query": "vancomycin dosing", "relevant_substrings": ["15 mg/kg"]}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := benchmark.LoadDataset(args[0])
			if err != nil {
				return err
			}

			client := benchmark.NewHTTPSearchClient(addr)
			ctx := cmd.Context()

			if reset {
				if err := client.Reset(ctx); err != nil {
					return fmt.Errorf("reset index: %w", err)
				}
			}
			if corpusPath != "" {
				docs, err := loadCorpus(corpusPath)
				if err != nil {
					return err
				}
				stats, err := client.IndexDocuments(ctx, docs)
				if err != nil {
					return fmt.Errorf("index corpus: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "indexed %d documents (%d total)\n",
					stats.IndexedCount, stats.TotalIndexed)
			}

			var alphaPtr *float64
			if cmd.Flags().Changed("alpha") {
				alphaPtr = &alpha
			}

			runner, err := benchmark.NewRunner(client, topK, alphaPtr, benchmark.MatchBy(matchBy))
			if err != nil {
				return err
			}
			report, err := runner.Run(ctx, cases)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if reportPath != "" {
				f, err := os.Create(reportPath)
				if err != nil {
					return fmt.Errorf("create report: %w", err)
				}
				defer f.Close()
				if err := report.WriteJSON(f); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}

			fmt.Fprintf(out, "queries: %d\n", report.Aggregate.QueryCount)
			fmt.Fprintf(out, "recall@%d: %.4f\n", topK, report.Aggregate.MeanRecall)
			fmt.Fprintf(out, "ndcg@%d:   %.4f\n", topK, report.Aggregate.MeanNDCG)
			fmt.Fprintf(out, "mrr@%d:    %.4f\n", topK, report.Aggregate.MeanMRR)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the API")
	cmd.Flags().IntVar(&topK, "top-k", 10, "results requested per query")
	cmd.Flags().Float64Var(&alpha, "alpha", 0.5, "vector weight for hybrid fusion (omit to use the server default)")
	cmd.Flags().StringVar(&matchBy, "match-by", string(benchmark.MatchAuto), "relevance matching: auto, id or substring")
	cmd.Flags().StringVar(&reportPath, "report", "", "write the full JSON report to this file")
	cmd.Flags().StringVar(&corpusPath, "index", "", "JSON array of documents to index before the run")
	cmd.Flags().BoolVar(&reset, "reset", false, "reset the index before the run")
	return cmd
}

func loadCorpus(path string) ([]domain.IndexedDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var docs []domain.IndexedDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("corpus %s has no documents", path)
	}
	return docs, nil
}
