package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/restgen/restgen/resource"
)

// ResponseFormatter defines an interface responsible for formatting a the
// different types of response objects.
type ResponseFormatter interface {
	// FormatList formats a list of items in a format ready to be serialized by the ResponseSender
	FormatList(ctx context.Context, headers http.Header, l *resource.ItemList, skipBody bool) (context.Context, interface{})
	// FormatError formats a REST formated error or a simple error in a format ready to be serialized by the ResponseSender
	FormatError(ctx context.Context, headers http.Header, err error, skipBody bool) (context.Context, interface{})
}

// ResponseSender defines an interface responsible for serializing and sending
// the response to the http.ResponseWriter.
type ResponseSender interface {
	// Send serialize the body, sets the given headers and write everything to
	// the provided response writer.
	Send(ctx context.Context, w http.ResponseWriter, status int, headers http.Header, body interface{})
}

// DefaultResponseFormatter provides a base response formatter to be used by
// default. This formatter can easily be extended or replaced by implementing
// ResponseFormatter interface and setting it on Handler.ResponseFormatter.
type DefaultResponseFormatter struct {
}

// DefaultResponseSender provides a base response sender to be used by default.
// This sender can easily be extended or replaced by implementing ResponseSender
// interface and setting it on Handler.ResponseSender.
type DefaultResponseSender struct {
}

// Send sends headers with the given status and marshal the data in JSON.
func (s DefaultResponseSender) Send(ctx context.Context, w http.ResponseWriter, status int, headers http.Header, body interface{}) {
	headers.Set("Content-Type", "application/json")
	// Apply headers to the response
	for key, values := range headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	if body == nil {
		w.WriteHeader(status)
		return
	}
	j, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		zerolog.Ctx(ctx).Error().Err(err).Msg("Can't build response")
		msg := fmt.Sprintf("Can't build response: %q", err.Error())
		w.Write([]byte(fmt.Sprintf("{\"code\": 500, \"message\": \"%s\"}", msg)))
		return
	}
	w.WriteHeader(status)
	if _, err = w.Write(j); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Can't send response")
	}
}

// FormatList implements ResponseFormatter.
func (f DefaultResponseFormatter) FormatList(ctx context.Context, headers http.Header, l *resource.ItemList, skipBody bool) (context.Context, interface{}) {
	if l.Total >= 0 {
		headers.Set("X-Total", strconv.Itoa(l.Total))
	}
	if l.Offset > 0 {
		headers.Set("X-Offset", strconv.Itoa(l.Offset))
	}
	if l.Limit > 0 {
		headers.Set("X-Limit", strconv.Itoa(l.Limit))
	}
	if skipBody {
		return ctx, nil
	}
	payload := make([]map[string]interface{}, len(l.Items))
	for i, item := range l.Items {
		payload[i] = item.Payload
	}
	return ctx, payload
}

// FormatError implements ResponseFormatter.
func (f DefaultResponseFormatter) FormatError(ctx context.Context, headers http.Header, err error, skipBody bool) (context.Context, interface{}) {
	e := NewError(err)
	if e == nil {
		e = &Error{http.StatusInternalServerError, "ServerError", "Server Error", nil}
	}
	if e.Code >= 500 {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Server error")
	}
	if skipBody {
		return ctx, nil
	}
	return ctx, e
}

// formatResponse routes the type of response on the right ResponseFormater method for
// internally supported types.
func formatResponse(ctx context.Context, f ResponseFormatter, status int, headers http.Header, resp interface{}, skipBody bool) (context.Context, int, interface{}) {
	var body interface{}
	switch resp := resp.(type) {
	case *resource.ItemList:
		ctx, body = f.FormatList(ctx, headers, resp, skipBody)
	case error:
		if status == 0 {
			status = NewError(resp).Code
		}
		ctx, body = f.FormatError(ctx, headers, resp, skipBody)
	default:
		// Let the response sender handle all other types of responses.
		// Even if the default response sender doesn't know how to handle
		// a type, nothing prevents a custom response sender from handling it.
		body = resp
	}
	return ctx, status, body
}
