package manifest

import "fmt"

// Domain represents a category of managed host resource.
type Domain string

const (
	// DomainPackageOfficial covers packages from the official repositories.
	DomainPackageOfficial Domain = "package-official"

	// DomainPackageAUR covers packages from the user repository.
	DomainPackageAUR Domain = "package-aur"

	// DomainServiceSystem covers system-level service units.
	DomainServiceSystem Domain = "service-system"

	// DomainServiceUser covers per-user service units.
	DomainServiceUser Domain = "service-user"

	// DomainServiceMasked covers units that must stay masked.
	DomainServiceMasked Domain = "service-masked"

	// DomainConfigFile covers tracked configuration files.
	DomainConfigFile Domain = "config-file"

	// DomainDockerNetwork covers container networks.
	DomainDockerNetwork Domain = "docker-network"

	// DomainDockerVolume covers container volumes.
	DomainDockerVolume Domain = "docker-volume"

	// DomainDockerCompose covers compose projects.
	DomainDockerCompose Domain = "docker-compose"
)

// Domains lists all domains in execution order: packages first, then
// services, config files, and finally the container resources. Compose
// projects come last because they assume networks and volumes exist.
var Domains = []Domain{
	DomainPackageOfficial,
	DomainPackageAUR,
	DomainServiceSystem,
	DomainServiceUser,
	DomainServiceMasked,
	DomainConfigFile,
	DomainDockerNetwork,
	DomainDockerVolume,
	DomainDockerCompose,
}

// domainPrefixes maps the manifest text prefix of each domain.
var domainPrefixes = map[Domain]string{
	DomainPackageOfficial: "package.official",
	DomainPackageAUR:      "package.aur",
	DomainServiceSystem:   "service.system",
	DomainServiceUser:     "service.user",
	DomainServiceMasked:   "service.masked",
	DomainConfigFile:      "config.system",
	DomainDockerNetwork:   "docker.network",
	DomainDockerVolume:    "docker.volume",
	DomainDockerCompose:   "docker.compose",
}

// domainFields lists the attribute names each domain may declare beyond the
// default "state" attribute. The parser uses this to split an identifier from
// a trailing field name, since identifiers themselves may contain dots.
var domainFields = map[Domain]map[string]bool{
	DomainPackageOfficial: {},
	DomainPackageAUR:      {},
	DomainServiceSystem:   {"active": true},
	DomainServiceUser:     {"active": true},
	DomainServiceMasked:   {},
	DomainConfigFile:      {"checksum": true, "source": true, "mode": true, "owner": true},
	DomainDockerNetwork:   {"driver": true, "scope": true},
	DomainDockerVolume:    {"driver": true},
	DomainDockerCompose:   {"source": true, "checksum": true},
}

// String returns the domain name.
func (d Domain) String() string {
	return string(d)
}

// Prefix returns the manifest text prefix for the domain, e.g.
// "package.official" for DomainPackageOfficial.
func (d Domain) Prefix() string {
	return domainPrefixes[d]
}

// Order returns the position of the domain in the fixed execution order.
func (d Domain) Order() int {
	for i, dom := range Domains {
		if dom == d {
			return i
		}
	}
	return len(Domains)
}

// IsDocker returns true for the container-runtime domains.
func (d Domain) IsDocker() bool {
	return d == DomainDockerNetwork || d == DomainDockerVolume || d == DomainDockerCompose
}

// IsSystem returns true for the non-container domains.
func (d Domain) IsSystem() bool {
	return !d.IsDocker()
}

// Validate checks that the domain is one of the known values.
func (d Domain) Validate() error {
	if _, ok := domainPrefixes[d]; !ok {
		return fmt.Errorf("invalid domain: %s", d)
	}
	return nil
}

// Field reports whether name is a recognized attribute field for the domain.
func (d Domain) Field(name string) bool {
	return domainFields[d][name]
}
