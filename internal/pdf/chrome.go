package pdf

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/logging"
)

// origin is the pseudo host documents are loaded from. Every request
// below it is answered from the package.
const origin = "https://docma.invalid/"

// Chrome converts HTML with a headless Chrome over the DevTools protocol.
// Every request the page makes is intercepted and answered through the
// document's Resolver, so package files, generators and remote content
// are subject to the same fetchers and bounds as the rest of docma.
type Chrome struct {
	// ExecPath selects the browser binary. Empty uses the chromedp
	// default search.
	ExecPath string
	Timeout  time.Duration
	Logger   logging.Logger
}

func (c *Chrome) logger() logging.Logger {
	if c.Logger == nil {
		return logging.Default().WithComponent("pdf")
	}

	return c.Logger
}

// Convert implements Converter.
func (c *Chrome) Convert(ctx context.Context, doc Document) ([]byte, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	cctx, cancel := chromedp.NewContext(actx)
	defer cancel()

	chromedp.ListenTarget(cctx, func(ev any) {
		if e, ok := ev.(*fetch.EventRequestPaused); ok {
			go c.serve(cctx, doc, e)
		}
	})

	var data []byte
	err := chromedp.Run(cctx,
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}),
		chromedp.Navigate(origin+doc.Name),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			data, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)

			return err
		}),
	)
	if err != nil {
		return nil, derrors.NewPackageError("Cannot convert to PDF").WithPath(doc.Name).WithCause(err)
	}

	return data, nil
}

func (c *Chrome) serve(ctx context.Context, doc Document, e *fetch.EventRequestPaused) {
	exec := cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Target)
	target := e.Request.URL

	var body []byte
	mimeType := "text/html"
	if name, ok := strings.CutPrefix(target, origin); ok && name == doc.Name {
		body = []byte(doc.HTML)
	} else {
		if ok {
			target = "file:" + name
		}
		res, err := doc.Resolve(ctx, target)
		if err != nil {
			c.logger().Warn(ctx, err, "Cannot fetch resource", "document", doc.Name, "url", target)
			if ferr := fetch.FailRequest(e.RequestID, network.ErrorReasonFailed).Do(exec); ferr != nil {
				c.logger().Debug(ctx, "Cannot fail request", "url", target, "error", ferr.Error())
			}

			return
		}
		body, mimeType = res.Data, res.MimeType
	}

	err := fetch.FulfillRequest(e.RequestID, 200).
		WithResponseHeaders([]*fetch.HeaderEntry{{Name: "Content-Type", Value: mimeType}}).
		WithBody(base64.StdEncoding.EncodeToString(body)).
		Do(exec)
	if err != nil {
		c.logger().Debug(ctx, "Cannot fulfil request", "url", target, "error", err.Error())
	}
}
