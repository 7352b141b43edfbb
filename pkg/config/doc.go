// Package config loads YAML device descriptions.
//
// A description names a device, declares its signals and optionally the
// maps to create once the device is ready:
//
//	name: synth
//	network:
//	  listen: 0.0.0.0:7570
//	  peers: [10.0.0.5:7570]
//	signals:
//	  - name: freq
//	    direction: out
//	    type: float32
//	    unit: Hz
//	    min: 20
//	    max: 20000
//	  - name: touch
//	    direction: in
//	    type: float32
//	    length: 2
//	    instances: 4
//	maps:
//	  - source: freq
//	    destination: fx.1/cutoff
//
// Map endpoints without a device part refer to the described device.
package config
