package service

import (
	"time"

	"raffler/models"
)

type noopMetrics struct{}

func (noopMetrics) RecordPurchase(models.ErrorKind)                          {}
func (noopMetrics) RecordRaffleStatusChange(models.RaffleStatus, models.RaffleStatus) {}
func (noopMetrics) RecordAppDraw(bool)                                       {}
func (noopMetrics) RecordLockWait(string, time.Duration)                     {}

func metricsOrNoop(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
