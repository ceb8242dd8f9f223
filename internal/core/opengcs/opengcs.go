package opengcs

import (
	"context"
	"time"
)

// GC is one open guest check of a store.
type GC struct {
	Number            int     `json:"number"`
	OpenTime          string  `json:"open_time"`
	LastTime          string  `json:"last_time"`
	Guests            int     `json:"guests"`
	OperatorNo        int     `json:"operator_no"`
	OperatorName      string  `json:"operator_name"`
	StartOperatorNo   int     `json:"start_operator_no"`
	StartOperatorName string  `json:"start_operator_name"`
	Total             float64 `json:"total"`
}

// Snapshot is the running-totals document of one store. The JSON keys are read by the
// analytics consumers and must stay stable.
type Snapshot struct {
	SourceFile  string  `json:"arquivo_origem"`
	ProcessedAt string  `json:"data_processamento"`
	Total       float64 `json:"opengcs_total"`
	Count       int     `json:"opengcs_count"`
	GCs         []GC    `json:"gcs"`
}

// Record is a snapshot keyed by store.
type Record struct {
	LojaID    string
	NIF       string
	Filial    string
	Data      Snapshot
	UpdatedAt time.Time
}

// Repository stores the latest snapshot per store, replacing any previous one.
type Repository interface {
	Upsert(ctx context.Context, rec Record) error
}
