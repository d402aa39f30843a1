// Package intentgate embeds the intentgate routing engine in a Go program,
// backed by Valkey or Redis with the search module.
//
// The client owns the term registry, the exemplar store and the router. It has no
// websocket gateway; use cmd/intentgate for real-time delivery.
//
//	client, _ := intentgate.New(ctx,
//	    intentgate.WithValkey("localhost:6379", ""),
//	    intentgate.WithDomains("real_estate", "vehicles"),
//	    intentgate.WithKeywords("real_estate", "apartment", "villa"),
//	    intentgate.WithDimensions(1536),
//	    intentgate.WithEmbedder(myEmbedder),
//	)
//	defer client.Close()
//
//	_ = client.Exemplars().ApplySchema(ctx)
//	_, _ = client.Exemplars().AddTexts(ctx, "real_estate", []string{"two bedroom flat near the sea"})
//	_, _ = client.Exemplars().Recompute(ctx)
//
//	d, _ := client.RouteText(ctx, "apartment in Girne", "en")
//	if d.IsNone() {
//	    // ask the user to clarify
//	}
package intentgate
