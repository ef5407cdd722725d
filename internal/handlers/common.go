package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/oneclick/wa-gateway/internal/repository"
	"github.com/oneclick/wa-gateway/internal/services"
	xhttp "github.com/oneclick/wa-gateway/pkg/http"
)

const clientIDHeader = "X-Client-ID"

var errMissingClientID = errors.New("missing or invalid " + clientIDHeader + " header")

// clientID extracts the authenticated tenant from the request. Upstream
// auth terminates at the edge proxy and forwards the resolved client id.
func clientID(ctx *xhttp.RequestCtx) (int64, error) {
	raw := ctx.Request.Header.Peek(clientIDHeader)
	if len(raw) == 0 {
		return 0, errMissingClientID
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errMissingClientID
	}
	return id, nil
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP statuses in one place so
// every handler reports the same way.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrCampaignNotFound),
		errors.Is(err, services.ErrClientNotFound),
		errors.Is(err, services.ErrWalletNotFound),
		errors.Is(err, repository.ErrMessageLogNotFound),
		errors.Is(err, repository.ErrTemplateNotFound),
		errors.Is(err, repository.ErrPricingRuleNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, services.ErrCampaignStateConflict):
		writeError(ctx, 409, err.Error())
	case errors.Is(err, services.ErrCredentialsUnset):
		writeError(ctx, 412, err.Error())
	case errors.Is(err, services.ErrLedgerPersistence):
		writeError(ctx, 500, err.Error())
	default:
		writeError(ctx, 400, err.Error())
	}
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	raw, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(raw, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt(ctx *xhttp.RequestCtx, key string) int {
	n, _ := strconv.Atoi(query(ctx, key))
	return n
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
