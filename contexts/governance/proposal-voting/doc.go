// Package proposalvoting implements committee voting on governance proposals
// inside the governance context.
//
// A proposal is scored by five fixed voters against a threshold chosen by its
// risk level and resolves to approved, rejected or escalated. The module owns
// the proposal lifecycle, concurrent vote collection with a per-proposal
// timeout, read-side listings and statistics, and outbox-backed vote and
// resolution events. Business rules stay in the application and domain
// layers; storage, voters and transport sit behind ports and adapters.
package proposalvoting
