package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"apyscope/internal/logic"
	"apyscope/internal/svc"
	"apyscope/internal/types"
	"apyscope/pkg/apy"
)

func SourcesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewSourcesLogic(r.Context(), svcCtx)
		resp, err := l.Sources()
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}

func MarketsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.MarketsRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, BadRequest(err))
			return
		}

		l := logic.NewMarketsLogic(r.Context(), svcCtx)
		resp, err := l.Markets(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}

func RatesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RatesRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, BadRequest(err))
			return
		}

		l := logic.NewRatesLogic(r.Context(), svcCtx)
		resp, err := l.Rates(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}

// ExportRatesHandler streams the raw rate table, incomplete rows included, as
// a CSV attachment.
func ExportRatesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RatesRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, BadRequest(err))
			return
		}

		l := logic.NewRatesLogic(r.Context(), svcCtx)
		table, _, err := l.Table(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		var buf bytes.Buffer
		if err := apy.WriteCSV(&buf, table); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", apy.ExportFilename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}
