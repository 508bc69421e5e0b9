package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"apyscope/internal/svc"
	"apyscope/internal/types"
)

type SourcesLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSourcesLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SourcesLogic {
	return &SourcesLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *SourcesLogic) Sources() (*types.SourcesResponse, error) {
	cfg := l.svcCtx.SourcesConfig
	return &types.SourcesResponse{
		Sources:        l.svcCtx.Pipeline.Sources(),
		DefaultSources: nonNil(cfg.Defaults.Sources),
		DefaultMarkets: nonNil(cfg.Defaults.Markets),
	}, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
