package graph

// ModuleForTag looks up the single resolved module carrying tag, the
// lookup spec §6's session_aif_get_tag_module_info and set_params_with_tag
// both need ("engine set-config scoped to one tag" / "queries engine for
// tag→modules under merged GKV"). Open's resolve step already enforces
// "tag resolved to exactly 1 module" (spec §4.3), so a found tag always
// carries exactly one module instance.
func (g *Graph) ModuleForTag(tag uint32) (ResolvedModule, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.resolved {
		if m.Tag == tag {
			return m, true
		}
	}
	return ResolvedModule{}, false
}

// ModuleForDevice returns the device-side resolved module owned by aifID,
// if any — the hardware-endpoint module session_aif_set_cal's re-issued
// engine set_cal targets.
func (g *Graph) ModuleForDevice(aifID uint32) (ResolvedModule, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.resolved {
		if m.Kind.IsDeviceSide() && m.OwningDeviceAIF == aifID {
			return m, true
		}
	}
	return ResolvedModule{}, false
}
