package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	v1 "github.com/Kaustab2003/co2-emission-forecasting/api/v1"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/config"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports"
)

func newSendReportsCmd(root *rootOptions) *cobra.Command {
	var (
		configPath string
		companyID  string
		format     string
		method     string
		recipients []string
		webhookURL string
	)

	cmd := &cobra.Command{
		Use:   "send-reports",
		Short: "Deliver emission reports now",
		Long: `Without --company, runs the scheduled delivery for every active owner.
With --company, delivers one company's report to --to or --webhook.`,
		Example: `  emissionsctl send-reports
  emissionsctl send-reports --company 7f1c... --to cfo@example.com --report-format xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.validate(); err != nil {
				return err
			}
			req := &reports.SendRequest{
				Format:     format,
				Method:     method,
				Recipients: recipients,
				WebhookURL: webhookURL,
			}
			if companyID != "" {
				id, err := uuid.Parse(companyID)
				if err != nil {
					return fmt.Errorf("invalid company ID %q", companyID)
				}
				req.CompanyID = &id
			}

			_ = godotenv.Load()
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger, err := v1.NewLogger(cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			components, err := v1.Setup(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			resp, err := components.Reports.Send(ctx, "cli", req)
			if err != nil {
				logger.Error("Report delivery failed", zap.Error(err))
				if resp == nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if root.format == "json" {
				if werr := writeJSON(out, resp); werr != nil {
					return werr
				}
				return err
			}
			if resp.Run != nil {
				fmt.Fprintf(out, "Delivered %d of %d reports (%d failed)\n",
					resp.Run.Sent, resp.Run.Recipients, resp.Run.Failed)
			}
			if resp.Execution != nil {
				fmt.Fprintf(out, "%s: %s (%d bytes)\n",
					resp.Execution.Status, resp.Execution.FileName, resp.Execution.FileSizeBytes)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.json", "path to the JSON config file")
	cmd.Flags().StringVar(&companyID, "company", "", "deliver a single company's report")
	cmd.Flags().StringVar(&format, "report-format", "", "report format: pdf, csv, xlsx")
	cmd.Flags().StringVar(&method, "method", "", "delivery method: email, ses, webhook, archive")
	cmd.Flags().StringSliceVar(&recipients, "to", nil, "recipient email addresses")
	cmd.Flags().StringVar(&webhookURL, "webhook", "", "webhook URL for webhook delivery")
	return cmd
}
