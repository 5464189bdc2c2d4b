package catalog

import (
	_ "embed"
	"sync"

	"github.com/wippyai/native-abi/layout"
)

//go:embed vulkan.yaml
var vulkanYAML []byte

var vulkanHost = sync.OnceValues(func() (*Catalog, error) {
	return VulkanFor(layout.HostTarget())
})

// Vulkan returns the bundled core Vulkan catalog for the host target. The
// catalog is built once and shared.
func Vulkan() (*Catalog, error) {
	return vulkanHost()
}

// VulkanFor builds the bundled catalog for target.
func VulkanFor(target layout.Target) (*Catalog, error) {
	return Load(vulkanYAML, FormatYAML, target)
}

// VulkanDocument returns the bundled declarations, for merging with
// application extensions.
func VulkanDocument() (Document, error) {
	return Parse(vulkanYAML, FormatYAML)
}
