//go:build ignore

// Package main generates a synthetic support knowledge base for local
// testing and benchmarking.
// Usage: go run scripts/generate-kb.go -articles 200 -output knowledge_base
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numArticles = flag.Int("articles", 200, "Number of articles to generate")
	outputDir   = flag.String("output", "knowledge_base", "Output directory")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var namespaces = []string{"billing", "account", "integrations", "troubleshooting"}

var topics = map[string][]string{
	"billing":         {"refunds", "invoices", "payment methods", "plan upgrades", "proration", "tax settings"},
	"account":         {"password reset", "two-factor authentication", "profile settings", "team members", "account deletion", "email changes"},
	"integrations":    {"api keys", "webhooks", "single sign-on", "calendar sync", "data export", "third-party apps"},
	"troubleshooting": {"login errors", "sync failures", "missing notifications", "slow performance", "upload problems", "mobile app crashes"},
}

var articleTemplate = `# %s

## Overview

This article explains how %s works in %s and answers the most common
questions our customers ask about it.

## How it works

%s

## Common questions

%s

## Still stuck?

If this article does not resolve your issue, reply to this thread or
contact support and include your account email so we can look into it.
`

var explanations = []string{
	"When you make a change here, it takes effect immediately for every member of your workspace. Administrators can review the change history from the audit log.",
	"Changes made in this area are applied at the start of the next billing cycle. You will receive a confirmation email once the change is processed, usually within a few minutes.",
	"This feature is available on all plans. You can configure it from the settings page, and the configuration is synced to every device signed in to your account.",
	"Processing normally completes within five business days. If it takes longer, check the status page for ongoing incidents before contacting support.",
}

var questions = []string{
	"**Can I undo this change?** Yes. Revisit the same settings page and restore the previous value; the change is applied immediately.",
	"**Does this affect other team members?** Only if you are a workspace administrator. Personal settings never affect other accounts.",
	"**Why don't I see this option?** Your role may not have permission. Ask a workspace administrator to grant you access.",
	"**Is there an API for this?** Yes. See the integrations section for the relevant endpoints and authentication details.",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	for i := 0; i < *numArticles; i++ {
		ns := namespaces[i%len(namespaces)]
		topic := topics[ns][rng.Intn(len(topics[ns]))]
		title := fmt.Sprintf("%s: article %d", capitalize(topic), i)

		body := fmt.Sprintf(articleTemplate,
			title,
			topic,
			"Caseflow",
			explanations[rng.Intn(len(explanations))],
			questions[rng.Intn(len(questions))]+"\n\n"+questions[rng.Intn(len(questions))],
		)

		dir := filepath.Join(*outputDir, ns)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
			os.Exit(1)
		}
		name := fmt.Sprintf("%s-%03d.md", strings.ReplaceAll(topic, " ", "-"), i)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("generated %d articles under %s\n", *numArticles, *outputDir)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
