// Package router turns inbound IRC events into normalized events and
// dispatches them to named destination queues.
//
// Destinations are fixed at startup by the Registry: one per configured
// channel, one for private messages addressed to the bot, and the shared
// outbox that receives a copy of everything routed.
package router
