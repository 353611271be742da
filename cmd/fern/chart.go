package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/services/resolver"
	"github.com/Ramsey-B/fern/pkg/storefront"
)

// chartCmd looks a product's chart up through the public endpoint of a running server.
func chartCmd() *cobra.Command {
	var (
		baseURL      string
		shopName     string
		productID    string
		templateType string
		timeout      time.Duration
		output       string
		query        string
	)

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Resolve the chart a product shows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := resolver.ParseRequestedKind(templateType)
			if err != nil {
				return err
			}

			logger, sync, err := newLogger("info", true)
			if err != nil {
				return err
			}

			defer sync()

			client := storefront.NewClient(storefront.Config{BaseURL: baseURL, Timeout: timeout}, nil, logger)
			resp, err := client.ResolveChart(cmd.Context(), shopName, productID, kind)
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), resp, output, query)
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:3000", "Base URL of a running fern server")
	cmd.Flags().StringVar(&shopName, "shop", "", "Shop handle or domain")
	cmd.Flags().StringVar(&productID, "product", "", "Product id or gid")
	cmd.Flags().StringVar(&templateType, "type", "", "Chart type (table or custom)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format (json or yaml)")
	cmd.Flags().StringVar(&query, "query", "", "JMESPath expression selecting part of the response, e.g. template.chartData.measurementFields[].id")
	_ = cmd.MarkFlagRequired("shop")
	_ = cmd.MarkFlagRequired("product")

	return cmd
}
