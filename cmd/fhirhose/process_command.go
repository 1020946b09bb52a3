package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seanwevans/fhir-department/internal/bundle"
	"github.com/seanwevans/fhir-department/internal/classify"
	"github.com/seanwevans/fhir-department/internal/extraction"
	"github.com/seanwevans/fhir-department/internal/ipc"
	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/mapping"
	"github.com/seanwevans/fhir-department/internal/notifications"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/reconcile"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/stageexec"
	"github.com/seanwevans/fhir-department/internal/validation"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <path>",
		Short: "Run the full pipeline on a single document in-process",
		Long: `Process runs a document through classification, extraction, mapping,
reconciliation, validation, and bundle assembly without involving the daemon.
The item is recorded in the queue database like any other submission.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := validateDocumentPath(args[0])
			if err != nil {
				return err
			}

			// The daemon's lanes would race this run for the same item
			// between stage transitions, so refuse while one is up.
			if client, dialErr := ipc.Dial(ctx.socketPath()); dialErr == nil {
				_, pingErr := client.Ping()
				client.Close()
				if pingErr == nil {
					return errors.New("the daemon is running and would pick up this item; queue it with `fhirhose add` instead, or stop the daemon first")
				}
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			item, err := store.NewDocument(cmd.Context(), absPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processing item #%d (%s)\n", item.ID, absPath)

			notifier := notifications.NewService(cfg)
			runner := services.NewRunner(logger, time.Duration(cfg.Classifier.TimeoutSeconds)*time.Second)

			steps := []stageexec.Step{
				{
					Name:       "classifier",
					Handler:    classify.NewClassifierWithDependencies(cfg, store, logger, runner, notifier),
					Processing: queue.StatusClassifying,
					Done:       queue.StatusClassified,
				},
				{
					Name:       "extractor",
					Handler:    extraction.NewExtractorWithDependencies(cfg, store, logger, extraction.NewTools(cfg, logger), notifier),
					Processing: queue.StatusExtracting,
					Done:       queue.StatusExtracted,
				},
				{
					Name:       "mapper",
					Handler:    mapping.NewMapper(cfg, store, logger),
					Processing: queue.StatusMapping,
					Done:       queue.StatusMapped,
				},
				{
					Name:       "reconciler",
					Handler:    reconcile.NewReconciler(cfg, store, logger),
					Processing: queue.StatusReconciling,
					Done:       queue.StatusReconciled,
				},
				{
					Name:       "validator",
					Handler:    validation.NewValidator(cfg, store, logger),
					Processing: queue.StatusValidating,
					Done:       queue.StatusValidated,
				},
				{
					Name:       "assembler",
					Handler:    bundle.NewAssemblerWithNotifier(cfg, store, logger, notifier),
					Processing: queue.StatusAssembling,
					Done:       queue.StatusCompleted,
				},
			}

			if err := stageexec.RunSequence(cmd.Context(), logger, store, notifier, item, steps); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if item.BundlePath != "" {
				fmt.Fprintf(out, "Bundle written to %s\n", item.BundlePath)
			}
			fmt.Fprintf(out, "Item #%d completed\n", item.ID)
			return nil
		},
	}
}
