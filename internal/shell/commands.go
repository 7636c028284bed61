package shell

// Register adds the Wi-Fi console commands to r.
func Register(r *Registry) error {
	for _, c := range []Command{
		{Name: "sta", Help: "WiFi is station mode, join specified soft-AP", New: func() Runner { return &staCmd{} }},
		{Name: "scan", Help: "WiFi is station mode, start scan ap", New: func() Runner { return &scanCmd{} }},
		{Name: "ap", Help: "AP mode, configure ssid and password", New: func() Runner { return &apCmd{} }},
		{Name: "query", Help: "query WiFi info", New: func() Runner { return &queryCmd{} }},
		{Name: "reg", Help: "Read/Write register", New: func() Runner { return &regCmd{} }},
		{Name: "tpw", Help: "Get/Set max tx power, unit is 0.25dBm", New: func() Runner { return &tpwCmd{} }},
		{Name: "pro", Help: "Get/Set protocol type of specified interface", New: func() Runner { return &proCmd{} }},
		{Name: "bwd", Help: "Get/Set the bandwidth of specified interface", New: func() Runner { return &bwdCmd{} }},
		{Name: "fix_rate", Help: "Set fix rate", New: func() Runner { return &fixRateCmd{} }},
		{Name: "stats", Help: "query WiFi statistics", New: func() Runner { return &statsCmd{} }},
		{Name: "iperf", Help: "iperf command", New: func() Runner { return &iperfCmd{} }},
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
