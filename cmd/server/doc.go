// Command server runs the agentfs HTTP service.
package main
