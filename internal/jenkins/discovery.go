package jenkins

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DiscoverSpec fetches a job's config.xml and extracts its schedule spec.
// Used only for jobs whose cron expression is not configured explicitly.
func (c *Client) DiscoverSpec(ctx context.Context, jobName string) (string, error) {
	resp, err := c.do(ctx, JobConfigURL(c.base, jobName))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &UpstreamStatusError{Status: resp.StatusCode}
	}
	return ExtractSpec(resp.Body)
}

// ExtractSpec pulls the first <spec> text out of a job config document,
// preferring one nested inside a timer-trigger element. Element names are
// matched on the local name only; Jenkins uses fully-qualified class names
// like hudson.triggers.TimerTrigger as tags.
func ExtractSpec(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var stack []string
	var first, timer string
	haveFirst, haveTimer := false, false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse job config xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "spec" {
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return "", fmt.Errorf("parse job config xml: %w", err)
				}
				text = strings.TrimSpace(text)
				if text == "" {
					continue
				}
				if !haveFirst {
					first, haveFirst = text, true
				}
				if !haveTimer && underTimerTrigger(stack) {
					timer, haveTimer = text, true
				}
				continue
			}
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	switch {
	case haveTimer:
		return timer, nil
	case haveFirst:
		return first, nil
	default:
		return "", ErrSpecNotFound
	}
}

func underTimerTrigger(stack []string) bool {
	for _, name := range stack {
		if strings.Contains(name, "TimerTrigger") {
			return true
		}
	}
	return false
}
