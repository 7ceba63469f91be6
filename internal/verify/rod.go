package verify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"ascbridge/internal/logging"
)

// RodDriver runs each session in a freshly launched Chromium, inside an
// incognito context with a single page.
type RodDriver struct {
	Bin       string // empty lets the launcher find or download a browser
	Headless  bool
	NoSandbox bool
}

// Open launches the browser, registers every listener, then navigates in
// the background. Navigation errors are reported as request failures.
func (d *RodDriver) Open(ctx context.Context, target Target, emit func(Event)) (io.Closer, error) {
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &rodSession{cancel: cancel}

	l := launcher.New().Context(sessCtx).Headless(d.Headless).NoSandbox(d.NoSandbox)
	if d.Bin != "" {
		l = l.Bin(d.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	s.launcher = l // Cleanup waits for the process to exit
	logging.BrowserDebug("Browser launched at %s", controlURL)

	browser := rod.New().ControlURL(controlURL).Context(sessCtx)
	if err := browser.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	s.browser = browser

	incognito, err := browser.Incognito()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create incognito context: %w", err)
	}
	s.incognito = incognito

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	page = page.Context(sessCtx)
	s.page = page

	if !target.Modern {
		router := page.HijackRequests()
		if err := router.Add("*", proto.NetworkResourceTypeDocument, legacyDocumentHandler()); err != nil {
			s.Close()
			return nil, fmt.Errorf("install legacy rewrite: %w", err)
		}
		go router.Run()
		s.router = router
	}

	var urls sync.Map // request ID -> URL
	wait := page.EachEvent(
		func(e *proto.RuntimeExceptionThrown) {
			emit(Event{Kind: EventScriptError, Text: exceptionText(e.ExceptionDetails)})
		},
		func(e *proto.NetworkRequestWillBeSent) {
			if e.Request != nil {
				urls.Store(e.RequestID, e.Request.URL)
			}
		},
		func(e *proto.NetworkLoadingFailed) {
			url, _ := urls.Load(e.RequestID)
			emit(Event{Kind: EventRequestFailed, Text: fmt.Sprintf("%v: %s", url, e.ErrorText)})
		},
		func(e *proto.InspectorTargetCrashed) {
			emit(Event{Kind: EventCrash})
		},
		func(e *proto.RuntimeConsoleAPICalled) {
			switch e.Type {
			case proto.RuntimeConsoleAPICalledTypeError:
				emit(Event{Kind: EventConsoleError, Text: stringifyConsoleArgs(e.Args)})
			case proto.RuntimeConsoleAPICalledTypeLog:
				emit(Event{Kind: EventConsoleLog, Text: stringifyConsoleArgs(e.Args)})
			}
		},
	)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		wait()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := page.Navigate(target.URL); err != nil && sessCtx.Err() == nil {
			emit(Event{Kind: EventRequestFailed, Text: fmt.Sprintf("navigate %s: %v", target.URL, err)})
		}
	}()

	return s, nil
}

type rodSession struct {
	once      sync.Once
	cancel    context.CancelFunc
	launcher  *launcher.Launcher
	browser   *rod.Browser
	incognito *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter
	wg        sync.WaitGroup
}

// Close tears the whole browser down. Safe to call more than once.
func (s *rodSession) Close() error {
	s.once.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		if s.page != nil {
			_ = s.page.Close()
		}
		if s.incognito != nil {
			_ = s.incognito.Close()
		}
		if s.browser != nil {
			_ = s.browser.Close()
		}
		s.cancel()
		s.wg.Wait()
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		logging.BrowserDebug("Browser session closed")
	})
	return nil
}

// legacyDocumentHandler fetches each document itself and strips module
// scripts before the page sees it.
func legacyDocumentHandler() func(*rod.Hijack) {
	client := &http.Client{Timeout: 30 * time.Second}
	return func(h *rod.Hijack) {
		if err := h.LoadResponse(client, true); err != nil {
			logging.BrowserWarn("Legacy rewrite: fetch %s: %v", h.Request.URL(), err)
			h.Response.Fail(proto.NetworkErrorReasonConnectionFailed)
			return
		}
		if !strings.Contains(h.Response.Headers().Get("Content-Type"), "text/html") {
			return
		}
		out, err := StripModuleScripts([]byte(h.Response.Body()))
		if err != nil {
			logging.BrowserWarn("Legacy rewrite: %v", err)
			return
		}

		payload := h.Response.Payload()
		kept := payload.ResponseHeaders[:0]
		for _, hdr := range payload.ResponseHeaders {
			if !strings.EqualFold(hdr.Name, "Content-Length") {
				kept = append(kept, hdr)
			}
		}
		payload.ResponseHeaders = kept
		h.Response.SetBody(out)
		logging.BrowserDebug("Legacy rewrite applied to %s", h.Request.URL())
	}
}

func exceptionText(d *proto.RuntimeExceptionDetails) string {
	if d == nil {
		return "uncaught exception"
	}
	if d.Exception != nil && d.Exception.Description != "" {
		return d.Exception.Description
	}
	text := d.Text
	if d.URL != "" {
		text = fmt.Sprintf("%s (%s:%d)", text, d.URL, d.LineNumber)
	}
	return text
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
