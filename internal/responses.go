package internal

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/beevik/etree"
	"github.com/lychee-technology/erpgate"
	"go.uber.org/zap"
)

const (
	contentTypeFeed       = "application/atom+xml;type=feed"
	contentTypeEntry      = "application/atom+xml;type=entry"
	contentTypeXML        = "application/xml"
	contentTypeSchemaJSON = "application/schema+json"
	contentTypeText       = "text/plain; charset=utf-8"
)

// writeXML serializes doc as the response body.
func writeXML(ctx context.Context, w http.ResponseWriter, statusCode int, contentType string, doc *etree.Document) error {
	body, err := doc.WriteToBytes()
	if err != nil {
		return erpgate.NewInternalError("failed to serialize response", err)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
	EmitResponse(ctx, statusCode, "")
	return nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, contentType string, data any) error {
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return erpgate.NewInternalError("failed to serialize response", err)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
	EmitResponse(ctx, statusCode, "")
	return nil
}

// writeStatus writes a bodiless success response.
func writeStatus(ctx context.Context, w http.ResponseWriter, statusCode int) error {
	w.WriteHeader(statusCode)
	EmitResponse(ctx, statusCode, "")
	return nil
}

// writeError writes err as a plain-text response. Server-side failures are
// logged with their cause; client errors only at debug level.
func writeError(ctx context.Context, w http.ResponseWriter, err *erpgate.Error, realm string) {
	status := erpgate.HTTPStatus(err)
	if err.Kind == erpgate.KindUnauthenticated {
		w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
	}
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Message + "\n"))
	EmitResponse(ctx, status, string(err.Kind))

	if status >= http.StatusInternalServerError {
		zap.S().Errorw("request failed", "kind", err.Kind, "status", status, "error", err.Message, "cause", err.Cause)
	} else {
		zap.S().Debugw("request rejected", "kind", err.Kind, "status", status, "error", err.Message)
	}
}
