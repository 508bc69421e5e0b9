package logic

import (
	"context"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"apyscope/internal/svc"
	"apyscope/internal/types"
	"apyscope/pkg/apy"
)

type MarketsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewMarketsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *MarketsLogic {
	return &MarketsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Markets lists the merged catalog. Without a sources parameter the
// configured default sources are used.
func (l *MarketsLogic) Markets(req *types.MarketsRequest) (*types.MarketsResponse, error) {
	sources := SplitList(req.Sources)
	if len(sources) == 0 {
		sources = l.svcCtx.SourcesConfig.Defaults.Sources
	}
	markets, err := l.svcCtx.Pipeline.Catalog(l.ctx, sources)
	if err != nil {
		return nil, err
	}
	if markets == nil {
		markets = []apy.Market{}
	}
	return &types.MarketsResponse{
		Markets:       markets,
		Count:         len(markets),
		DuplicateKeys: apy.DuplicateKeys(markets),
	}, nil
}

// SplitList splits a comma separated parameter, dropping blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
