package inbenta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	connerrors "github.com/inbenta-integrations/chatbot-api-connector/internal/errors"
)

type apiErrors struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Message string `json:"message"`
}

// Call performs one request and decodes a JSON reply into out (which may be nil).
// An {"errors":[...]} envelope or a non-2xx status becomes a backend
// ConnectorError carrying the API code and message.
func Call(ctx context.Context, client *http.Client, method, url string, headers http.Header, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return connerrors.Backend("inbenta", 0, method+" "+url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return connerrors.Backend("inbenta", resp.StatusCode, "read body", err)
	}

	var envelope apiErrors
	if len(raw) > 0 && json.Unmarshal(raw, &envelope) == nil && len(envelope.Errors) > 0 {
		return connerrors.Backend("inbenta", envelope.Errors[0].Code, envelope.Errors[0].Message, nil)
	}
	if resp.StatusCode >= 300 {
		msg := envelope.Message
		if msg == "" {
			msg = fmt.Sprintf("%s %s: %s", method, url, resp.Status)
		}
		return connerrors.Backend("inbenta", resp.StatusCode, msg, nil)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return connerrors.Backend("inbenta", resp.StatusCode, "decode response", err)
	}
	return nil
}

func asConnectorError(err error, target **connerrors.ConnectorError) bool {
	return errors.As(err, target)
}
