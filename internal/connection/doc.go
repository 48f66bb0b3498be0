// Package connection implements the Connection Supervisor component.
//
// The Connection Supervisor:
//   - Keeps exactly one IRC session alive for the lifetime of the process
//   - Registers (PASS/NICK/USER), retries with a suffixed nickname on collision
//   - Joins every configured channel once the server welcomes us
//   - Hands public and private messages to the Message Router synchronously
//   - Restarts the session after a fixed cooldown on any fault
package connection
