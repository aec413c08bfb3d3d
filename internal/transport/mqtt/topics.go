package mqtt

import "strings"

// BaseTopic returns the device's base topic, "<realm>/<device_id>".
func BaseTopic(realm, deviceID string) string {
	return realm + "/" + deviceID
}

// ControlConsumerPropertiesTopic returns the server-owned topic the device
// always subscribes to during the handshake.
func ControlConsumerPropertiesTopic(base string) string {
	return base + "/control/consumer/properties"
}

// ControlEmptyCacheTopic returns the topic the device publishes its
// empty-cache marker to.
func ControlEmptyCacheTopic(base string) string {
	return base + "/control/emptyCache"
}

// DataTopic returns the topic for a publish on the given interface and
// mapping path. path must begin with "/".
func DataTopic(base, interfaceName, path string) string {
	return base + "/" + interfaceName + path
}

// ServerOwnedWildcard returns the subscription filter for every mapping of
// a server-owned interface.
func ServerOwnedWildcard(base, interfaceName string) string {
	return base + "/" + interfaceName + "/#"
}

// SplitDataTopic strips base+"/" from topic and splits the remainder into
// interface name and mapping path, as the inbound dispatch path requires.
// ok is false if topic does not belong to base.
func SplitDataTopic(base, topic string) (interfaceName, path string, ok bool) {
	prefix := base + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(topic, prefix)
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return "", "", false
	}
	return rest[:slash], rest[slash:], true
}
