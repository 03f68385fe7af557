package yuki

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// soapRequest is implemented by every request body; action is the SOAP
// operation name, which is also the local name of the body element.
type soapRequest interface {
	action() string
}

type requestEnvelope struct {
	XMLName xml.Name    `xml:"soap:Envelope"`
	Soap    string      `xml:"xmlns:soap,attr"`
	Body    requestBody `xml:"soap:Body"`
}

type requestBody struct {
	Content soapRequest
}

type responseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault   *soapFault `xml:"Fault"`
		Content []byte     `xml:",innerxml"`
	} `xml:"Body"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

// FaultError is a SOAP fault raised by the accounting system. Faults are
// rejections of the request and are not retried.
type FaultError struct {
	Action string
	Code   string
	Reason string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s: SOAP fault %s: %s", e.Action, e.Code, e.Reason)
}

// sessionFault reports faults raised for an unknown or expired session id
func sessionFault(f *soapFault) bool {
	reason := strings.ToLower(f.String)
	return strings.Contains(reason, "session") &&
		(strings.Contains(reason, "invalid") || strings.Contains(reason, "expired") || strings.Contains(reason, "unknown"))
}

// call posts req to service and decodes the body of the response into out
func (c *Client) call(ctx context.Context, service string, req soapRequest, out interface{}) error {
	payload, err := xml.Marshal(requestEnvelope{
		Soap: "http://schemas.xmlsoap.org/soap/envelope/",
		Body: requestBody{Content: req},
	})
	if err != nil {
		return fmt.Errorf("%s: failed to encode request: %w", req.action(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(service),
		bytes.NewReader(append([]byte(xml.Header), payload...)))
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", req.action(), err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", `"`+soapNamespace+req.action()+`"`)

	body, sendErr := c.send(httpReq)
	if body == nil {
		return fmt.Errorf("%s: %w", req.action(), sendErr)
	}

	var env responseEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		if sendErr != nil {
			return fmt.Errorf("%s: %w", req.action(), sendErr)
		}
		return fmt.Errorf("%s: malformed SOAP response: %w", req.action(), err)
	}

	if f := env.Body.Fault; f != nil {
		if sessionFault(f) {
			c.logger.Info("Accounting session rejected", zap.String("action", req.action()))
			return fmt.Errorf("%s: %w", req.action(), ErrSessionExpired)
		}
		return &FaultError{Action: req.action(), Code: f.Code, Reason: f.String}
	}
	if sendErr != nil {
		return fmt.Errorf("%s: %w", req.action(), sendErr)
	}

	if out == nil {
		return nil
	}
	if err := xml.Unmarshal(env.Body.Content, out); err != nil {
		return fmt.Errorf("%s: malformed SOAP response: %w", req.action(), err)
	}
	return nil
}
