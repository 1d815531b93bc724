// MCP transport handler using the official MCP Go SDK.
// Exposes sitemap builds as MCP tools so agents can inspect what crawlers see.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"storefront-sitemap/internal/model"
	"storefront-sitemap/internal/sitemap"
)

// === MCP Tool Input/Output Types ===

// BuildIndexInput is the input schema for build_sitemap_index.
type BuildIndexInput struct {
	Locale string `json:"locale,omitempty" jsonschema:"locale to build; defaults to the default locale"`
}

// BuildPageInput is the input schema for build_sitemap_page.
type BuildPageInput struct {
	Locale     string `json:"locale,omitempty" jsonschema:"locale to build; defaults to the default locale"`
	Collection string `json:"collection" jsonschema:"collection ID, e.g. products,required"`
	Page       int    `json:"page" jsonschema:"1-based page number,required"`
}

// BuildStaticInput is the input schema for build_static_sitemap.
type BuildStaticInput struct {
	Locale string `json:"locale,omitempty" jsonschema:"locale to build; defaults to the default locale"`
}

// SitemapOutput is returned by every tool.
type SitemapOutput struct {
	Locale   string `json:"locale"`
	Location string `json:"location"`
	Entries  int    `json:"entries"`
	XML      string `json:"xml"`
}

// NewMCPServer creates an MCP server with sitemap tools registered.
// The tools build documents fresh, bypassing the response cache.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "storefront-sitemap",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Storefront sitemap service. Use these tools to build the sitemap " +
				"index of a locale, a single collection page, or the static page list.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_sitemap_index",
		Description: "Build the sitemap index of a locale, listing every sitemap document it references.",
	}, h.mcpBuildIndex)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_sitemap_page",
		Description: "Build one page of a catalog collection sitemap for a locale.",
	}, h.mcpBuildPage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_static_sitemap",
		Description: "Build the static page sitemap of a locale.",
	}, h.mcpBuildStatic)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpBuildIndex(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input BuildIndexInput,
) (*mcp.CallToolResult, *SitemapOutput, error) {
	locale := h.mcpLocale(input.Locale)
	doc, err := h.builder.BuildIndex(ctx, locale)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpOutput(locale, sitemap.IndexName, doc)
}

func (h *Handler) mcpBuildPage(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input BuildPageInput,
) (*mcp.CallToolResult, *SitemapOutput, error) {
	if input.Collection == "" {
		return nil, nil, fmt.Errorf("collection is required")
	}
	coll, ok := h.site.Collection(input.Collection)
	if !ok {
		return nil, nil, h.mcpError(model.NewInvalidArgumentError("collection", fmt.Sprintf("unknown collection %q", input.Collection)))
	}

	locale := h.mcpLocale(input.Locale)
	window := sitemap.PageWindow{PageNumber: input.Page, PageSize: coll.PageSize}
	doc, err := h.builder.BuildPageDocument(ctx, coll.ID, window, locale)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpOutput(locale, sitemap.PageDocumentName(coll.ID, input.Page), doc)
}

func (h *Handler) mcpBuildStatic(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input BuildStaticInput,
) (*mcp.CallToolResult, *SitemapOutput, error) {
	locale := h.mcpLocale(input.Locale)
	doc, err := h.builder.BuildStaticDocument(locale)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpOutput(locale, sitemap.StaticDocumentName(h.site.StaticName), doc)
}

func (h *Handler) mcpLocale(locale string) string {
	if locale == "" {
		return h.site.DefaultLocale
	}
	return locale
}

func (h *Handler) mcpOutput(locale, name string, doc sitemap.Renderable) (*mcp.CallToolResult, *SitemapOutput, error) {
	body, err := sitemap.RenderXML(doc)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, &SitemapOutput{
		Locale:   locale,
		Location: h.site.DocumentURL(locale, name),
		Entries:  doc.Len(),
		XML:      string(body),
	}, nil
}

// mcpError converts builder errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 500 {
			h.logger.Warn("mcp build failed", "code", apiErr.Code, "error", err.Error())
		}
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
