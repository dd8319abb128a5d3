// Package ai generates item summaries and derives tags from them through an
// OpenAI-compatible chat completion API.
package ai

import (
	"context"
	"io"
)

// SummarySystemPrompt instructs the model how to summarize page content.
const SummarySystemPrompt = `You are a helpful assistant that creates concise, informative summaries of web content.
Your summaries should:
- Be 2-3 paragraphs long
- Capture the main points and key takeaways
- Be written in a clear, professional tone`

// TagsSystemPrompt instructs the model to answer with comma-separated tags only.
const TagsSystemPrompt = `You are a helpful assistant that extracts relevant tags from content summaries.
Extract 3-5 short, relevant tags that categorize the content.
Return ONLY a comma-separated list of tags, nothing else.
Example: technology, programming, web development, javascript`

// Summarizer produces summaries and raw tag text.
type Summarizer interface {
	// StreamSummary writes the summary of content to w as it is generated.
	StreamSummary(ctx context.Context, content string, w io.Writer) error

	// ExtractTags returns the model's comma-separated tag response for summary.
	ExtractTags(ctx context.Context, summary string) (string, error)
}

func summaryPrompt(content string) string {
	return "Please summarize the following content:\n\n" + content
}

func tagsPrompt(summary string) string {
	return "Extract tags from this summary: \n\n" + summary
}
