package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/farmlens/backend/internal/apiclient"
	"github.com/farmlens/backend/internal/creao"
	httpDelivery "github.com/farmlens/backend/internal/delivery/http"
	"github.com/farmlens/backend/internal/domain"
)

func newAnalyzeCSVCmd(opts *options) *cobra.Command {
	var crop string

	cmd := &cobra.Command{
		Use:   "analyze-csv [file]",
		Short: "Generate insights, forecast and recommendations from a sales CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Analytics.AnalyzeCSV(ctx, string(data), crop)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&crop, "crop", "", "Focus the analysis on one crop")
	return cmd
}

func newAnalyzeImageCmd(opts *options) *cobra.Command {
	var produce string
	var listing bool

	cmd := &cobra.Command{
		Use:   "analyze-image [file]",
		Short: "Estimate crates, weight and quality from a produce photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			image, err := loadImageFile(a.Images.FromBytes, args[0])
			if err != nil {
				return err
			}

			if listing {
				result, err := a.Analytics.SuggestListing(ctx, image, produce)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			}

			result, err := a.Analytics.AnalyzeImage(ctx, image, produce)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&produce, "produce", "", "Produce type shown in the photo")
	cmd.Flags().BoolVar(&listing, "listing", false, "Price the photo as a marketplace listing")
	return cmd
}

func newReadWeightCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "read-weight [file]",
		Short: "Read the weight off a photo of a digital scale",
		Long: `Tries each configured weight backend in order and prints the first
reading that passes range and confidence checks. Nothing is stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			image, err := loadImageFile(a.Images.FromBytes, args[0])
			if err != nil {
				return err
			}

			reading, err := a.Weights.ReadWeight(ctx, image)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), reading)
		},
	}
}

func newClassifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [file]",
		Short: "Identify the produce in a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			image, err := loadImageFile(a.Images.FromBytes, args[0])
			if err != nil {
				return err
			}

			result, err := a.Produce.Classify(ctx, image)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

// creaoExport is the file written by import-creao and read by upload
type creaoExport struct {
	UserStats        *creao.UserStats       `json:"user_stats,omitempty"`
	TransactionStats creao.TransactionStats `json:"transaction_stats"`
	Farmers          []domain.FarmerData    `json:"farmers"`
}

func newImportCreaoCmd() *cobra.Command {
	var usersFile, transactionsFile, outFile string

	cmd := &cobra.Command{
		Use:   "import-creao",
		Short: "Convert Creao user and transaction exports into weekly farmer data",
		Example: `  farmctl import-creao --users users.csv --transactions orders.csv --out farmers.json
  farmctl upload farmers.json --api https://farmlens.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter := creao.NewAdapter()
			var export creaoExport

			if usersFile != "" {
				stats, err := loadWith(usersFile, adapter.LoadUsers)
				if err != nil {
					return fmt.Errorf("users: %w", err)
				}
				export.UserStats = &stats
			}

			stats, err := loadWith(transactionsFile, adapter.LoadTransactions)
			if err != nil {
				return fmt.Errorf("transactions: %w", err)
			}
			export.TransactionStats = stats
			export.Farmers = adapter.Farmers()

			out := cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d farmers (%d orders, %d rows skipped) to %s\n",
					len(export.Farmers), stats.TotalOrders, stats.Skipped, outFile)
			}
			return writeJSON(out, export)
		},
	}
	cmd.Flags().StringVar(&usersFile, "users", "", "Creao users CSV export")
	cmd.Flags().StringVar(&transactionsFile, "transactions", "", "Creao transactions CSV export (required)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Output file (default stdout)")
	_ = cmd.MarkFlagRequired("transactions")
	return cmd
}

func newUploadCmd(opts *options) *cobra.Command {
	var apiURL, token string

	cmd := &cobra.Command{
		Use:   "upload [file]",
		Short: "Send an import-creao file to a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			farmers, err := readFarmersFile(args[0])
			if err != nil {
				return err
			}
			if len(farmers) == 0 {
				return errors.New("no farmers in file")
			}

			ctx, cancel := opts.withTimeout(cmd)
			defer cancel()

			resp, err := apiclient.New(apiURL, token, opts.timeout).BulkUpload(ctx, farmers)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:8080", "FarmLens server base URL")
	cmd.Flags().StringVar(&token, "token", os.Getenv("FARMLENS_API_TOKEN"), "Bearer token")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var secret, farmerID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token",
		Long: `Signs an HS256 token for the server's auth.jwt_secret. Without --farmer
the token may act for any farmer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or FARMLENS_AUTH_JWT_SECRET is required")
			}
			token, err := httpDelivery.GenerateToken(secret, farmerID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("FARMLENS_AUTH_JWT_SECRET"), "JWT signing secret")
	cmd.Flags().StringVar(&farmerID, "farmer", "", "Bind the token to one farmer ID")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func loadImageFile(fromBytes func([]byte, string) (*domain.Image, error), path string) (*domain.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return fromBytes(data, "")
}

func loadWith[T any](path string, load func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	return load(f)
}

// readFarmersFile accepts an import-creao export or a plain JSON list of farmers
func readFarmersFile(path string) ([]domain.FarmerData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []domain.FarmerData
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var export creaoExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("%s is not a farmer export: %w", path, err)
	}
	return export.Farmers, nil
}
