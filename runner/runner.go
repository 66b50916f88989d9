// Package runner wraps epiworld.Model.RunMultiple with structured
// per-replicate progress logging, upgrading the teacher's
// log.Printf("starting instance %03d", i) loop (bin/contagion/main.go)
// to github.com/sirupsen/logrus, matching the ambient logging stack the
// rest of this repo carries.
package runner

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	epiworld "github.com/epiworld-go/epiworld"
)

// RunMultiple runs m.RunMultiple(ndays, nreplicates, seed, parallel, ...),
// logging an Info-level start line, a Debug-level per-replicate
// completion line with its elapsed time (Error-level if the replicate
// failed), and an Info-level final summary line — the same three points the
// teacher's bin/contagion/main.go reports around sim.Run(i).
func RunMultiple(m *epiworld.Model, ndays, nreplicates int, seed int64, parallel bool, callback func(epiworld.ReplicateResult)) error {
	log.WithFields(log.Fields{
		"replicates": nreplicates,
		"days":       ndays,
		"seed":       seed,
		"parallel":   parallel,
	}).Info("starting replicate batch")

	err := m.RunMultiple(ndays, nreplicates, seed, parallel, func(r epiworld.ReplicateResult) {
		fields := log.Fields{
			"replicate": r.Index,
			"seed":      r.Seed,
			"elapsed":   r.Elapsed,
		}
		if r.Err != nil {
			log.WithFields(fields).WithError(r.Err).Error("replicate failed")
		} else {
			log.WithFields(fields).Debug("replicate finished")
		}
		callback(r)
	})
	if err != nil {
		return errors.Wrap(err, "running replicate batch")
	}
	log.Info("completed replicate batch")
	return nil
}
