// Package securemem keeps secrets such as the keystore password in
// memguard-protected buffers so they do not linger in swap or core dumps.
//
// Import the package from main so memguard is initialized before any
// secret is created.
package securemem

import "github.com/awnumar/memguard"

func init() {
	Init()
}

// Init installs memguard's interrupt handler, which wipes every locked
// buffer before the process exits on SIGINT.
func Init() {
	memguard.CatchInterrupt()
}

// Cleanup destroys all protected buffers. Call it on normal shutdown.
func Cleanup() {
	memguard.Purge()
}

// Wipe zeroes a plaintext copy obtained from a String.
func Wipe(data []byte) {
	memguard.WipeBytes(data)
}
