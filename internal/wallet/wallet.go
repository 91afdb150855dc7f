// Package wallet holds the small identity utilities: address
// generation and local IP discovery for the advertised peer info.
package wallet

import (
	"crypto/rand"
	"net"
	"strings"
)

const addressCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewAddress generates a random alphanumeric wallet address of the form
// prefix + length characters from [A-Z0-9]. Addresses are opaque
// identifiers with no cryptographic binding to the holder.
func NewAddress(prefix string, length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic("wallet: crypto/rand unavailable: " + err.Error())
	}
	var b strings.Builder
	b.Grow(len(prefix) + length)
	b.WriteString(prefix)
	for _, c := range buf {
		b.WriteByte(addressCharset[int(c)%len(addressCharset)])
	}
	return b.String()
}

// LocalIP returns the address peers should dial to reach this host.
// Private-range interface addresses are preferred; failing that it
// falls back to the kernel's route toward a public address, and
// finally to loopback.
func LocalIP() string {
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip != nil && ip.IsPrivate() {
				return ip.String()
			}
		}
	}

	// No private interface found: ask the kernel which source address it
	// would use to reach the outside (no packet is sent on UDP dial).
	if conn, err := net.Dial("udp4", "8.8.8.8:1"); err == nil {
		defer conn.Close()
		if udpAddr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			return udpAddr.IP.String()
		}
	}

	return "127.0.0.1"
}
