package mcp

import "github.com/mark3labs/mcp-go/mcp"

var importToolDef = mcp.NewTool("item_import",
	mcp.WithDescription("Save a web page for later. The page is scraped immediately; the result "+
		"reports COMPLETED with the stored item, or FAILED when the page could not be scraped."),
	mcp.WithString("url",
		mcp.Required(),
		mcp.Description("Absolute http(s) URL of the page"),
	),
	mcp.WithOpenWorldHintAnnotation(true),
)

var bulkImportToolDef = mcp.NewTool("item_bulk_import",
	mcp.WithDescription("Save several pages. URLs are scraped one at a time; each becomes its own item "+
		"that ends COMPLETED or FAILED independently. If any URL is invalid nothing is saved."),
	mcp.WithArray("urls",
		mcp.Required(),
		mcp.Description("Absolute http(s) URLs"),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithOpenWorldHintAnnotation(true),
)

var mapToolDef = mcp.NewTool("item_map",
	mcp.WithDescription("Discover links on a site without saving anything. Results are capped by the "+
		"configured map limit. Pass the chosen links to item_bulk_import."),
	mcp.WithString("url",
		mcp.Required(),
		mcp.Description("Site or section URL to crawl for links"),
	),
	mcp.WithString("search",
		mcp.Description("Optional phrase to filter links by"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithOpenWorldHintAnnotation(true),
)

var listToolDef = mcp.NewTool("item_list",
	mcp.WithDescription("List saved items, newest first, without page content."),
	mcp.WithString("query",
		mcp.Description("Case-insensitive match against title or tags"),
	),
	mcp.WithString("status",
		mcp.Description("Status filter (default all)"),
		mcp.Enum("all", "PROCESSING", "COMPLETED", "FAILED"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var getToolDef = mcp.NewTool("item_get",
	mcp.WithDescription("Fetch one saved item including its markdown content, summary and tags."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Item ID"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var summarizeToolDef = mcp.NewTool("item_summarize",
	mcp.WithDescription("Generate a summary of an item's content with the configured model. "+
		"Nothing is stored; call item_save_summary to keep it."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Item ID"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithOpenWorldHintAnnotation(true),
)

var saveSummaryToolDef = mcp.NewTool("item_save_summary",
	mcp.WithDescription("Store a summary for an item. Up to five tags are derived from the summary "+
		"and stored with it, replacing any previous summary and tags."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Item ID"),
	),
	mcp.WithString("summary",
		mcp.Required(),
		mcp.Description("Final summary text"),
	),
	mcp.WithOpenWorldHintAnnotation(true),
)
