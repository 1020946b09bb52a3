package workflow

import "github.com/seanwevans/fhir-department/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
// Intake covers the external-tool-heavy document stages; assembly covers the
// network-bound resource stages. Only the intake lane runs the stale-item
// reclaimer; one reclaim pass sweeps every processing status.
func (m *Manager) ConfigureStages(set StageSet) {
	intake := &laneState{kind: laneIntake, name: "intake", notificationsEnabled: true}
	assembly := &laneState{kind: laneAssembly, name: "assembly", notificationsEnabled: false}

	if set.Classifier != nil {
		intake.stages = append(intake.stages, pipelineStage{
			name:             "classifier",
			handler:          set.Classifier,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusClassifying,
			doneStatus:       queue.StatusClassified,
		})
	}
	if set.Extractor != nil {
		intake.stages = append(intake.stages, pipelineStage{
			name:             "extractor",
			handler:          set.Extractor,
			startStatus:      queue.StatusClassified,
			processingStatus: queue.StatusExtracting,
			doneStatus:       queue.StatusExtracted,
		})
	}
	if set.Mapper != nil {
		assembly.stages = append(assembly.stages, pipelineStage{
			name:             "mapper",
			handler:          set.Mapper,
			startStatus:      queue.StatusExtracted,
			processingStatus: queue.StatusMapping,
			doneStatus:       queue.StatusMapped,
		})
	}
	if set.Reconciler != nil {
		assembly.stages = append(assembly.stages, pipelineStage{
			name:             "reconciler",
			handler:          set.Reconciler,
			startStatus:      queue.StatusMapped,
			processingStatus: queue.StatusReconciling,
			doneStatus:       queue.StatusReconciled,
		})
	}
	if set.Validator != nil {
		assembly.stages = append(assembly.stages, pipelineStage{
			name:             "validator",
			handler:          set.Validator,
			startStatus:      queue.StatusReconciled,
			processingStatus: queue.StatusValidating,
			doneStatus:       queue.StatusValidated,
		})
	}
	if set.Assembler != nil {
		assembly.stages = append(assembly.stages, pipelineStage{
			name:             "assembler",
			handler:          set.Assembler,
			startStatus:      queue.StatusValidated,
			processingStatus: queue.StatusAssembling,
			doneStatus:       queue.StatusCompleted,
		})
	}

	lanes := make(map[laneKind]*laneState)
	order := make([]laneKind, 0, 2)

	if len(intake.stages) > 0 {
		intake.finalize()
		intake.runReclaimer = true
		lanes[intake.kind] = intake
		order = append(order, intake.kind)
	}
	if len(assembly.stages) > 0 {
		assembly.finalize()
		assembly.runReclaimer = len(order) == 0
		lanes[assembly.kind] = assembly
		order = append(order, assembly.kind)
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
