package storage

import (
	"context"

	"paperbroker/internal/broker"
)

type Store interface {
	SaveSettlement(ctx context.Context, settlement broker.Settlement) error
	LoadSettlements(ctx context.Context) ([]broker.Settlement, error)
	LastSettlement(ctx context.Context) (broker.Settlement, error)
	SaveTransactions(ctx context.Context, code string, fills []broker.FillRecord) error
	LoadTransactions(ctx context.Context, code string) ([]broker.FillRecord, error)
}
