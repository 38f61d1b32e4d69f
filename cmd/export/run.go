package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paper-triplets/config"
	"paper-triplets/logging"
	"paper-triplets/providers"
	"paper-triplets/providers/bioc"
	"paper-triplets/providers/publications"
	"paper-triplets/providers/pubmed"
	"paper-triplets/services"
	"paper-triplets/storage"
)

var (
	ids          []string
	outPath      string
	tripletsPath string
	upload       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, group and export papers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, err := logging.New(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var idSource providers.IDSource
		if len(ids) == 0 {
			var resolver publications.Resolver
			if cfg.ResolvePMIDs {
				resolver = pubmed.NewConverter(cfg, log)
			}
			idSource = publications.NewSource(cfg, log, resolver)
		}
		pipeline := services.NewPipelineService(cfg, log, bioc.NewFetcher(cfg, log), idSource, nil, nil)

		var result *services.RunResult
		if len(ids) > 0 {
			result, err = pipeline.Run(ctx, ids)
		} else {
			result, err = pipeline.RunFromSource(ctx)
		}
		if result == nil {
			return err
		}
		if err != nil {
			// Teilergebnis trotzdem schreiben
			log.Warn("Pipeline-Lauf unvollständig", zap.Error(err))
		}

		files, werr := writeOutputs(result, outPath, tripletsPath)
		if werr != nil {
			return werr
		}
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n", f.path)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Processed %d papers, skipped %d, %d triplets\n",
			len(result.Documents), len(result.Skipped), result.TripletCount())

		if upload {
			if uerr := uploadOutputs(ctx, cfg, files); uerr != nil {
				return uerr
			}
		}
		return err
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&ids, "ids", nil, "Comma-separated PMC ids (default: read from PUBLICATIONS_CSV)")
	runCmd.Flags().StringVarP(&outPath, "out", "o", "grouped_papers.json", "Output file for the grouped section trees")
	runCmd.Flags().StringVar(&tripletsPath, "triplets", "", "Optional JSONL output file for the triplets")
	runCmd.Flags().BoolVar(&upload, "upload", false, "Upload the written files to the configured S3 bucket")

	rootCmd.AddCommand(runCmd)
}

type outputFile struct {
	path        string
	contentType string
	data        []byte
}

// writeOutputs schreibt die Bäume (und optional die Triplets). Ohne Dokumente wird nichts geschrieben.
func writeOutputs(result *services.RunResult, out, triplets string) ([]outputFile, error) {
	if len(result.Documents) == 0 {
		return nil, nil
	}

	var files []outputFile
	var buf bytes.Buffer
	if err := storage.WriteGroupedJSON(&buf, result.Documents); err != nil {
		return nil, err
	}
	files = append(files, outputFile{path: out, contentType: "application/json", data: bytes.Clone(buf.Bytes())})

	if triplets != "" {
		buf.Reset()
		if err := storage.WriteTripletsJSONL(&buf, result.Documents); err != nil {
			return nil, err
		}
		files = append(files, outputFile{path: triplets, contentType: "application/x-ndjson", data: bytes.Clone(buf.Bytes())})
	}

	for _, f := range files {
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.path, err)
		}
	}
	return files, nil
}

func uploadOutputs(ctx context.Context, cfg *config.Config, files []outputFile) error {
	if !cfg.S3Enabled() {
		return errors.New("upload requested but S3_URL, S3_BUCKET or S3_KEY is not set")
	}
	client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create s3 client: %w", err)
	}
	for _, f := range files {
		link, err := storage.UploadFile(ctx, client, cfg, filepath.Base(f.path), f.contentType, f.data)
		if err != nil {
			return fmt.Errorf("upload %s: %w", f.path, err)
		}
		fmt.Printf("Uploaded %s\n", link)
	}
	return nil
}
