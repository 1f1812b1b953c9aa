package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/viewkit/viewkit"
	"github.com/viewkit/viewkit/query"
	"github.com/viewkit/viewkit/util"
)

// parseParams parses k=v pairs into raw query parameters
func parseParams(pairs []string) (map[string]string, error) {
	params := map[string]string{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query parameter %q: expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}

// readDocuments reads a json or yaml object mapping document ids to documents
func readDocuments(content []byte) (map[string][]byte, error) {
	bits, err := util.YAMLToJSON(content)
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(bits)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("documents must be an object of id to document")
	}
	docs := map[string][]byte{}
	parsed.ForEach(func(key, value gjson.Result) bool {
		docs[key.String()] = []byte(value.Raw)
		return true
	})
	return docs, nil
}

func runQuery(ctx context.Context, docs, design []byte, designFile, view string, params map[string]string) (*query.Result, error) {
	cfg := viewkit.DefaultConfig()
	cfg.LogLevel = "error"
	bucket, err := viewkit.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer bucket.Close(ctx)
	documents, err := readDocuments(docs)
	if err != nil {
		return nil, err
	}
	if err := bucket.PutMany(ctx, documents); err != nil {
		return nil, err
	}
	doc, err := bucket.PutDesign(ctx, designName(designFile), design)
	if err != nil {
		return nil, err
	}
	return bucket.QueryView(ctx, doc.Name, view, params)
}

func queryCmd() *cobra.Command {
	var (
		docsPath   string
		designPath string
		view       string
		pairs      []string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "run a single view query against documents loaded from a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := parseParams(pairs)
			if err != nil {
				return err
			}
			docs, err := os.ReadFile(docsPath)
			if err != nil {
				return err
			}
			design, err := os.ReadFile(designPath)
			if err != nil {
				return err
			}
			result, err := runQuery(cmd.Context(), docs, design, designPath, view, params)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&docsPath, "docs", "", "json or yaml file mapping document ids to documents")
	cmd.Flags().StringVar(&designPath, "design", "", "design document file")
	cmd.Flags().StringVar(&view, "view", "", "view name")
	cmd.Flags().StringArrayVar(&pairs, "param", nil, "query parameter as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("docs")
	_ = cmd.MarkFlagRequired("design")
	_ = cmd.MarkFlagRequired("view")
	return cmd
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
