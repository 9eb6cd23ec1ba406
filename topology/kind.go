package topology

// Kind identifies what a canvas component is. The exporter keys all of its
// per-component behaviour (config mapping, emission order) off this value.
type Kind string

const (
	KindHost       Kind = "host"
	KindSTA        Kind = "sta"
	KindSwitch     Kind = "switch"
	KindRouter     Kind = "router"
	KindController Kind = "controller"
	KindAP         Kind = "ap"
	KindGNB        Kind = "gnb"
	KindUE         Kind = "ue"
	KindDockerHost Kind = "dockerhost"
	// KindCore5G is the VGcore aggregate. It owns a table of core service
	// rows and never emits a node statement of its own.
	KindCore5G Kind = "core5g"
)

// AllKinds lists every kind a topology document may declare.
var AllKinds = []Kind{
	KindHost, KindSTA, KindSwitch, KindRouter, KindController,
	KindAP, KindGNB, KindUE, KindDockerHost, KindCore5G,
}

func (k Kind) Valid() bool {
	for _, v := range AllKinds {
		if v == k {
			return true
		}
	}
	return false
}

// Wireless reports whether nodes of this kind participate in the radio
// simulation (position/txpower matter, mn_wifi imports are needed).
func (k Kind) Wireless() bool {
	switch k {
	case KindAP, KindSTA, KindGNB, KindUE:
		return true
	}
	return false
}

// Docker reports whether nodes of this kind run as containers and therefore
// need containernet instead of plain mininet.
func (k Kind) Docker() bool {
	switch k {
	case KindDockerHost, KindGNB, KindUE, KindCore5G:
		return true
	}
	return false
}

// ServiceKind is one of the Open5GS network function roles a VGcore
// aggregate expands into.
type ServiceKind string

const (
	SvcAMF  ServiceKind = "AMF"
	SvcSMF  ServiceKind = "SMF"
	SvcUPF  ServiceKind = "UPF"
	SvcNRF  ServiceKind = "NRF"
	SvcSCP  ServiceKind = "SCP"
	SvcAUSF ServiceKind = "AUSF"
	SvcBSF  ServiceKind = "BSF"
	SvcNSSF ServiceKind = "NSSF"
	SvcPCF  ServiceKind = "PCF"
	SvcUDM  ServiceKind = "UDM"
	SvcUDR  ServiceKind = "UDR"
)

// ServiceKinds is the declaration order used when scanning a VGcore table.
var ServiceKinds = []ServiceKind{
	SvcUPF, SvcAMF, SvcSMF, SvcNRF, SvcSCP,
	SvcAUSF, SvcBSF, SvcNSSF, SvcPCF, SvcUDM, SvcUDR,
}

// StartupOrder is the order core services must be brought up in: the NRF and
// SCP first, since every other function registers with them, the UPF last.
var StartupOrder = []ServiceKind{
	SvcNRF, SvcSCP, SvcAUSF, SvcUDM, SvcUDR, SvcPCF,
	SvcBSF, SvcNSSF, SvcSMF, SvcAMF, SvcUPF,
}

// Daemon returns the open5gs daemon name for the service, e.g. open5gs-amfd.
func (s ServiceKind) Daemon() string {
	return "open5gs-" + s.Lower() + "d"
}

func (s ServiceKind) Lower() string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
