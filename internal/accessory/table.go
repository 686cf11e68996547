package accessory

// Accessory ids.
const (
	AccessoryBridge    = 1
	AccessoryOccupancy = 2
	AccessoryClimate   = 3
)

// Characteristic ids.
const (
	Occupancy   = "occupancy_detected"
	Temperature = "temperature"
	Humidity    = "humidity"
)

// Accessory categories.
const (
	CategoryBridge = "bridge"
	CategorySensor = "sensor"
)

var readNotify = []Perm{PermPairedRead, PermEvents}

// DefaultTable is the node's accessory layout: the bridge itself, an
// occupancy sensor, and a temperature & humidity sensor.
func DefaultTable(bridge Info) []Accessory {
	return []Accessory{
		{
			ID:       AccessoryBridge,
			Category: CategoryBridge,
			Info:     bridge,
		},
		{
			ID:       AccessoryOccupancy,
			Category: CategorySensor,
			Info:     Info{Name: "Occupancy sensor"},
			Services: []Service{
				{
					Type:    "OccupancySensor",
					Primary: true,
					Characteristics: []Definition{
						{ID: Occupancy, Type: "OccupancyDetected", Format: FormatBool, Perms: readNotify, Initial: false},
					},
				},
			},
		},
		{
			ID:       AccessoryClimate,
			Category: CategorySensor,
			Info:     Info{Name: "Temperature and Humidity sensor"},
			Services: []Service{
				{
					Type: "HumiditySensor",
					Name: "Humidity Sensor",
					Characteristics: []Definition{
						{ID: Humidity, Type: "CurrentRelativeHumidity", Format: FormatFloat, Perms: readNotify, Initial: 1.0, Unit: "percentage", Min: 0, Max: 100, Step: 1},
					},
				},
				{
					Type:    "TemperatureSensor",
					Name:    "Temperature Sensor",
					Primary: true,
					Characteristics: []Definition{
						{ID: Temperature, Type: "CurrentTemperature", Format: FormatFloat, Perms: readNotify, Initial: 1.0, Unit: "celsius", Min: 0, Max: 100, Step: 0.1},
					},
				},
			},
		},
	}
}
