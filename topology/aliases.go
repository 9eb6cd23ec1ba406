package topology

// aliases maps, per kind, each canonical property key to the legacy keys
// older saved topologies used for the same field: raw Qt widget ids from
// before the dialogs were given stable names, and keys that were later
// renamed. Normalization consults this table exactly once per node; mappers
// then read canonical keys only.
var aliases = map[Kind]map[string][]string{
	KindHost: {
		"Host_IPAddress":    {"lineEdit_2"},
		"Host_MACAddress":   {"lineEdit"},
		"Host_DefaultRoute": {"lineEdit_3"},
		"Host_AmountCPU":    {"doubleSpinBox"},
		"Host_Memory":       {"spinBox"},
	},
	KindSTA: {
		"STA_IPAddress":    {"lineEdit_2"},
		"STA_DefaultRoute": {"lineEdit_3"},
		"STA_AmountCPU":    {"doubleSpinBox"},
		"STA_Memory":       {"spinBox"},
	},
	KindAP: {
		"AP_SSID":    {"lineEdit_5"},
		"AP_Channel": {"spinBox_2"},
		"AP_Mode":    {"comboBox_2"},
		"AP_Range":   {"spinBox_3"},
		"AP_DPID":    {"lineEdit_4"},
	},
	KindSwitch: {
		"Switch_DPID":     {"Router_DPID", "lineEdit_4"},
		"Switch_Protocol": {"comboBox"},
	},
	KindRouter: {
		"Switch_DPID":     {"Router_DPID", "lineEdit_4"},
		"Switch_Protocol": {"comboBox"},
	},
	KindController: {
		"Controller_IPAddress": {"lineEdit_6"},
		"Controller_Port":      {"spinBox_4"},
		"Controller_Type":      {"comboBox_4"},
	},
	KindDockerHost: {
		"DockerHost_ContainerImage": {"DockerHost_Image", "lineEdit_10"},
		"DockerHost_Command":        {"DockerHost_Cmd"},
		"DockerHost_PortForward":    {"lineEdit_11"},
		"DockerHost_VolumeMapping":  {"lineEdit_12"},
		"DockerHost_IPAddress":      {"lineEdit_2"},
		"DockerHost_MACAddress":     {"lineEdit"},
		"DockerHost_AmountCPU":      {"doubleSpinBox"},
		"DockerHost_Memory":         {"spinBox"},
	},
	KindGNB: {
		"GNB_GNBHostName": {"GNB_Hostname"},
		"GNB_AP_Enabled":  {"GNB_APEnabled"},
		"GNB_Range":       {"wireless_range", "lineEdit_6", "spinBox_3"},
	},
	KindUE: {
		"UE_KEY":    {"UE_Key"},
		"UE_OPType": {"UE_OP_Type"},
	},
	KindCore5G: {
		"VGCore_DockerImage":   {"Component5G_Image"},
		"VGCore_DockerNetwork": {"Component5G_NetworkMode"},
	},
}

// AliasHit records one legacy key resolved during normalization, for
// low-severity traceability logging.
type AliasHit struct {
	Canonical string
	Legacy    string
}

// Normalize resolves legacy keys into their canonical names on a copy of the
// bag. A canonical key that is already present wins over any legacy spelling.
func (p Props) Normalize(kind Kind) (Props, []AliasHit) {
	table := aliases[kind]
	if len(table) == 0 || len(p) == 0 {
		return p, nil
	}
	out := p.Clone()
	var hits []AliasHit
	for canonical, legacy := range table {
		if out.present(canonical) {
			continue
		}
		for _, old := range legacy {
			if out.present(old) {
				out[canonical] = out[old]
				hits = append(hits, AliasHit{Canonical: canonical, Legacy: old})
				break
			}
		}
	}
	return out, hits
}
