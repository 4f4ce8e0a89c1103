// Package opsfeed implements the client core for the IOCCA live reasoning
// feed: a single websocket connection whose interleaved event stream is
// demultiplexed into independent per-stream buffers.
//
// Ownership model:
//   - Client owns the connection, its lifecycle state and the retry schedule.
//   - Registry owns all per-stream accumulation state; callers read
//     projections and never mutate buffers directly.
//   - Bus is the only surface external collaborators (renderers, app logic)
//     attach to; handlers run synchronously on the read loop, so anything
//     heavier than bookkeeping belongs behind a Forwarder subscription.
//
// Recommended setup:
//   - Build a Bus, a Registry on top of it, and a Client with NewClient.
//   - Subscribe renderers to the stream.* topics before calling Connect.
//   - Use TriggerClient for the HTTP endpoints that start server-side work.
package opsfeed
