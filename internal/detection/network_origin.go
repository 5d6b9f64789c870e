// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package detection

import (
	"fmt"
	"net"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

var rfc1918Ranges = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}()

// checkNetworkOrigin flags scans whose source IP can never belong to a
// consumer in the field: loopback addresses and RFC 1918 private
// ranges. Both are low severity on their own; they matter as additive
// context when other checks fire.
func checkNetworkOrigin(_ Thresholds, _ []models.ScanEvent, incoming *models.ScanEvent) (int, []models.Flag) {
	ip := net.ParseIP(incoming.ClientIP)
	if ip == nil {
		return 0, nil
	}

	if ip.IsLoopback() {
		return ScoreLocalhostScan, []models.Flag{models.NewFlag(
			models.FlagLocalhostScan,
			models.SeverityLow,
			fmt.Sprintf("Scan originated from loopback address %s", incoming.ClientIP),
			models.NetworkDetails{ClientIP: incoming.ClientIP, Range: "loopback"},
		)}
	}

	for _, n := range rfc1918Ranges {
		if n.Contains(ip) {
			return ScorePrivateIP, []models.Flag{models.NewFlag(
				models.FlagPrivateIP,
				models.SeverityLow,
				fmt.Sprintf("Scan originated from private address %s", incoming.ClientIP),
				models.NetworkDetails{ClientIP: incoming.ClientIP, Range: n.String()},
			)}
		}
	}

	return 0, nil
}
