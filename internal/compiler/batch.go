// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"context"

	"go.uber.org/zap"

	"gopkg.microglot.org/udfc.go/internal/exc"
	"gopkg.microglot.org/udfc.go/internal/udf"
)

// Batch drives an ordered list of UDFs through a Dispatcher one at a time and
// stops at the first failure. UDFs compiled before the failure stay cached so
// rerunning the batch only recompiles from the failed UDF onward.
type Batch struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewBatch(d *Dispatcher) *Batch {
	return &Batch{
		dispatcher: d,
		logger:     d.Logger,
	}
}

func (self *Batch) CompileAll(ctx context.Context, udfs []*udf.UDF, conf udf.JobConfig, jobID int) error {
	for offset, u := range udfs {
		if err := self.dispatcher.Compile(ctx, u, conf, jobID); err != nil {
			subject := exc.SubjectOf(u)
			e := exc.WrapMessage(subject, exc.CodeBatchCompileFailure, "compile failed", err)
			self.logger.Error("udf batch stopped",
				zap.Int("jobID", jobID),
				zap.String("language", subject.Language.String()),
				zap.String("class", subject.ClassName),
				zap.Int("position", offset),
				zap.Int("total", len(udfs)),
				zap.Error(err),
			)
			return e
		}
	}
	self.logger.Info("udf batch compiled", zap.Int("jobID", jobID), zap.Int("total", len(udfs)))
	return nil
}
