package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"skim/internal/logger"
)

// Hosts that render article bodies client-side and need a real browser.
var jsHeavyHosts = []string{
	"bloomberg.com",
	"reuters.com",
	"twitter.com",
	"x.com",
	"medium.com",
	"theatlantic.com",
	"newyorker.com",
	"wired.com",
}

const veryShortContent = 200

// Policy controls which fallbacks the enhanced fetch may or must take.
type Policy struct {
	ForceJS      bool
	ForceArchive bool
}

type fetchState int

const (
	stateDirect fetchState = iota
	stateJSRender
	stateArchive
	stateDone
)

// Enhanced layers JS-render and archive fallbacks over the core fetcher.
// Either fallback may be nil when disabled by configuration.
type Enhanced struct {
	fetcher  *Fetcher
	renderer *Renderer
	archiver *Archiver
}

// NewEnhanced creates the enhanced fetcher. renderer and archiver are
// optional.
func NewEnhanced(fetcher *Fetcher, renderer *Renderer, archiver *Archiver) *Enhanced {
	return &Enhanced{fetcher: fetcher, renderer: renderer, archiver: archiver}
}

// Fetch walks Direct -> JSRender -> Archive until a path yields sufficient
// content. The best result seen is returned even when every path degrades,
// with the original failure carried in FetchError.
func (e *Enhanced) Fetch(ctx context.Context, pageURL string, policy Policy) (*Result, error) {
	if err := ValidateURL(pageURL); err != nil {
		return nil, fmt.Errorf("URL rejected: %w", err)
	}

	state := stateDirect
	if policy.ForceArchive {
		state = stateArchive
	} else if policy.ForceJS {
		state = stateJSRender
	}

	var best *Result
	var directErr error

	for state != stateDone {
		switch state {
		case stateDirect:
			result, err := e.fetcher.Fetch(ctx, pageURL)
			if err != nil {
				directErr = err
				state = e.afterDirectFailure(pageURL)
				continue
			}
			best = result
			state = e.afterDirect(pageURL, result)

		case stateJSRender:
			result, err := e.tryJSRender(ctx, pageURL)
			if err != nil {
				logger.Warn("JS render fallback failed", "url", pageURL, "error", err)
				state = e.afterJSFailure(pageURL, best)
				continue
			}
			if looksBotDetection(result.Content) && e.archiver != nil {
				state = stateArchive
				continue
			}
			result.FallbackUsed = SourceJSRender
			best = pickBetter(best, result)
			if e.sufficient(best) || e.archiver == nil || !e.shouldArchive(pageURL, best) {
				state = stateDone
				continue
			}
			state = stateArchive

		case stateArchive:
			result, err := e.tryArchive(ctx, pageURL)
			if err != nil {
				logger.Warn("archive fallback failed", "url", pageURL, "error", err)
				state = stateDone
				continue
			}
			best = pickBetter(best, result)
			state = stateDone
		}
	}

	if best == nil {
		if directErr != nil {
			return nil, directErr
		}
		return nil, fmt.Errorf("all fetch paths failed for %s", pageURL)
	}
	if directErr != nil {
		best.FetchError = directErr.Error()
	}
	return best, nil
}

// afterDirect decides the next state from a successful direct fetch.
func (e *Enhanced) afterDirect(pageURL string, result *Result) fetchState {
	if e.sufficient(result) && !result.Paywalled {
		return stateDone
	}
	if e.renderer != nil && (isJSHeavyHost(pageURL) || len(result.Content) < veryShortContent) {
		return stateJSRender
	}
	if e.archiver != nil && e.shouldArchive(pageURL, result) {
		return stateArchive
	}
	return stateDone
}

// afterDirectFailure picks a fallback when the direct fetch errored outright.
func (e *Enhanced) afterDirectFailure(pageURL string) fetchState {
	if e.renderer != nil && isJSHeavyHost(pageURL) {
		return stateJSRender
	}
	if e.archiver != nil {
		return stateArchive
	}
	return stateDone
}

func (e *Enhanced) afterJSFailure(pageURL string, best *Result) fetchState {
	if e.archiver != nil && (best == nil || e.shouldArchive(pageURL, best)) {
		return stateArchive
	}
	return stateDone
}

// shouldArchive reports whether the archive path is worth trying: the page
// looked paywalled, bot-blocked, or came from a known-paywalled publisher.
func (e *Enhanced) shouldArchive(pageURL string, result *Result) bool {
	if result == nil {
		return true
	}
	if result.Paywalled || looksBotDetection(result.Content) {
		return true
	}
	if u, err := url.Parse(pageURL); err == nil && isPaywalledDomain(u.Hostname()) {
		return !e.sufficient(result)
	}
	return false
}

func (e *Enhanced) sufficient(result *Result) bool {
	return result != nil && len(result.Content) >= e.fetcher.minContentLength
}

func (e *Enhanced) tryJSRender(ctx context.Context, pageURL string) (*Result, error) {
	if e.renderer == nil {
		return nil, fmt.Errorf("JS rendering disabled")
	}
	html, finalURL, err := e.renderer.Render(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	result, err := e.fetcher.Extract(pageURL, html)
	if err != nil {
		return nil, err
	}
	result.FinalURL = finalURL
	result.SourceTag = SourceJSRender
	return result, nil
}

func (e *Enhanced) tryArchive(ctx context.Context, pageURL string) (*Result, error) {
	if e.archiver == nil {
		return nil, fmt.Errorf("archive fallback disabled")
	}
	snapshot, err := e.archiver.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return e.resultFromSnapshot(pageURL, snapshot)
}

func (e *Enhanced) resultFromSnapshot(pageURL string, snapshot *Snapshot) (*Result, error) {
	result, err := e.fetcher.Extract(pageURL, snapshot.HTML)
	if err != nil {
		return nil, err
	}
	result.FinalURL = snapshot.URL
	result.SourceTag = snapshot.SourceTag
	result.FallbackUsed = FallbackArchive
	result.ArchiveSource = snapshot.SourceTag
	// Archive copies bypass the paywall; the tag reflects the source.
	result.Paywalled = false
	return result, nil
}

// pickBetter keeps whichever result carries more content, preferring the
// newer one on ties.
func pickBetter(current, candidate *Result) *Result {
	if current == nil {
		return candidate
	}
	if candidate == nil {
		return current
	}
	if len(candidate.Content) >= len(current.Content) {
		return candidate
	}
	return current
}

func isJSHeavyHost(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range jsHeavyHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
