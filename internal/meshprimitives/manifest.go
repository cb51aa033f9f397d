package meshprimitives

// AgentManifest is the advertised identity and capability set of an agent.
type AgentManifest struct {
	id           AgentID
	name         string
	version      string
	description  string
	hasDesc      bool
	capabilities []Capability
	tags         []string
}

// ID returns the agent identifier.
func (m AgentManifest) ID() AgentID { return m.id }

// Name returns the agent display name.
func (m AgentManifest) Name() string { return m.name }

// Version returns the manifest's semantic version string.
func (m AgentManifest) Version() string { return m.version }

// Description returns the optional description and whether one was set.
func (m AgentManifest) Description() (string, bool) { return m.description, m.hasDesc }

// Capabilities returns the advertised capabilities.
func (m AgentManifest) Capabilities() []Capability {
	out := make([]Capability, len(m.capabilities))
	copy(out, m.capabilities)
	return out
}

// Tags returns the manifest's tags.
func (m AgentManifest) Tags() []string {
	out := make([]string, len(m.tags))
	copy(out, m.tags)
	return out
}

// AgentManifestBuilder builds an AgentManifest, requiring non-empty name and
// version before Build succeeds.
type AgentManifestBuilder struct {
	id           AgentID
	name         string
	hasName      bool
	version      string
	hasVersion   bool
	description  string
	hasDesc      bool
	capabilities []Capability
	tags         []string
}

// NewAgentManifestBuilder starts building a manifest for the given agent id.
func NewAgentManifestBuilder(id AgentID) *AgentManifestBuilder {
	return &AgentManifestBuilder{id: id}
}

// Name sets the agent display name.
func (b *AgentManifestBuilder) Name(name string) (*AgentManifestBuilder, error) {
	if isBlank(name) {
		return nil, &InvalidCapabilityError{Reason: "manifest name cannot be empty"}
	}
	b.name, b.hasName = name, true
	return b, nil
}

// Version sets the semantic version string.
func (b *AgentManifestBuilder) Version(version string) (*AgentManifestBuilder, error) {
	if isBlank(version) {
		return nil, &InvalidCapabilityError{Reason: "manifest version cannot be empty"}
	}
	b.version, b.hasVersion = version, true
	return b, nil
}

// Description sets an optional description.
func (b *AgentManifestBuilder) Description(description string) *AgentManifestBuilder {
	b.description, b.hasDesc = description, true
	return b
}

// Capabilities replaces the capability set.
func (b *AgentManifestBuilder) Capabilities(capabilities []Capability) *AgentManifestBuilder {
	b.capabilities = capabilities
	return b
}

// AddTag adds a tag label.
func (b *AgentManifestBuilder) AddTag(tag string) (*AgentManifestBuilder, error) {
	if isBlank(tag) {
		return nil, &InvalidCapabilityError{Reason: "manifest tag cannot be empty"}
	}
	b.tags = append(b.tags, tag)
	return b, nil
}

// Build finalizes the AgentManifest.
func (b *AgentManifestBuilder) Build() (AgentManifest, error) {
	if !b.hasName {
		return AgentManifest{}, &InvalidCapabilityError{Reason: "manifest name must be provided"}
	}
	if !b.hasVersion {
		return AgentManifest{}, &InvalidCapabilityError{Reason: "manifest version must be provided"}
	}
	caps := make([]Capability, len(b.capabilities))
	copy(caps, b.capabilities)
	tags := make([]string, len(b.tags))
	copy(tags, b.tags)
	return AgentManifest{
		id:           b.id,
		name:         b.name,
		version:      b.version,
		description:  b.description,
		hasDesc:      b.hasDesc,
		capabilities: caps,
		tags:         tags,
	}, nil
}
