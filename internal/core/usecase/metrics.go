package usecase

import (
	"time"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

type noopMetrics struct{}

func (noopMetrics) ObserveSubmission(domain.Status)        {}
func (noopMetrics) ObservePromotion(string, time.Duration) {}
func (noopMetrics) ObserveDiscardWarning()                 {}
func (noopMetrics) ObserveBatch(int, int)                  {}
func (noopMetrics) ObserveAnalysis(string)                 {}
