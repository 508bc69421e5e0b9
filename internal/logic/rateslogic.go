package logic

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"apyscope/internal/svc"
	"apyscope/internal/types"
	"apyscope/pkg/apy"
)

type RatesLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
	now    func() time.Time
}

func NewRatesLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RatesLogic {
	return &RatesLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
		now:    time.Now,
	}
}

// Table builds the merged rate table of the requested selection.
func (l *RatesLogic) Table(req *types.RatesRequest) (*apy.RateTable, apy.DateRange, error) {
	window, err := apy.ParseDateRange(req.StartDate, req.EndDate, l.now())
	if err != nil {
		return nil, apy.DateRange{}, err
	}
	sel := apy.Selection{Sources: req.Sources, Markets: req.Markets, Window: window}
	table, err := l.svcCtx.Pipeline.Rates(l.ctx, sel)
	if err != nil {
		return nil, window, err
	}
	l.Infof("rates: %d rows (%d incomplete) window=%s", table.Len(), table.Incomplete, window)
	return table, window, nil
}

func (l *RatesLogic) Rates(req *types.RatesRequest) (*types.RatesResponse, error) {
	table, window, err := l.Table(req)
	if err != nil {
		return nil, err
	}
	return &types.RatesResponse{
		StartDate:  window.Start.Format(apy.DateLayout),
		EndDate:    window.End.Format(apy.DateLayout),
		Rows:       table.Rows,
		Total:      table.Len(),
		Incomplete: table.Incomplete,
		Kinds:      nonNil(table.Kinds()),
		Markets:    nonNil(table.Markets()),
	}, nil
}
