package tele

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/vendsim/helpers"
	"github.com/temoto/vendsim/log2"
	tele_config "github.com/temoto/vendsim/tele/config"
)

const defaultPublishTimeout = 10 * time.Second

type transportMqtt struct {
	log *log2.Log
	m   mqtt.Client

	topicPrefix    string
	topicConnect   string
	topicState     string
	topicTelemetry string
}

// mqttLogger adapts log2 to paho package level loggers.
type mqttLogger struct {
	log   *log2.Log
	level log2.Level
}

func (self mqttLogger) Println(v ...interface{}) { self.log.Log(self.level, "mqtt: "+fmt.Sprint(v...)) }
func (self mqttLogger) Printf(format string, v ...interface{}) {
	self.log.Logf(self.level, "mqtt: "+format, v...)
}

func (self *transportMqtt) Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config, willPayload []byte) error {
	self.log = log
	mqtt.ERROR = mqttLogger{log, log2.LError}
	mqtt.CRITICAL = mqttLogger{log, log2.LError}
	mqtt.WARN = mqttLogger{log, log2.LInfo}
	if teleConfig.MqttLogDebug {
		mqtt.DEBUG = mqttLogger{log, log2.LDebug}
	}
	if teleConfig.MqttBroker == "" {
		return errors.NotValidf("tele.mqtt_broker=empty")
	}

	mqttClientId := fmt.Sprintf("vm%d", teleConfig.VmId)
	self.topicPrefix = mqttClientId // coincidence
	self.topicConnect = fmt.Sprintf("%s/c", self.topicPrefix)
	self.topicState = fmt.Sprintf("%s/w/1s", self.topicPrefix)
	self.topicTelemetry = fmt.Sprintf("%s/w/1t", self.topicPrefix)
	keepAlive := helpers.IntSecondDefault(teleConfig.KeepaliveSec, 60*time.Second)
	pingTimeout := helpers.IntSecondDefault(teleConfig.PingTimeoutSec, 30*time.Second)

	mopt := mqtt.NewClientOptions().
		AddBroker(teleConfig.MqttBroker).
		SetBinaryWill(self.topicConnect, willPayload, 1, true).
		SetCleanSession(false).
		SetClientID(mqttClientId).
		SetUsername(mqttClientId).
		SetPassword(teleConfig.MqttPassword).
		SetKeepAlive(keepAlive).
		SetPingTimeout(pingTimeout).
		SetAutoReconnect(true).
		SetOnConnectHandler(self.onConnectHandler).
		SetConnectionLostHandler(self.connectLostHandler)
	self.m = mqtt.NewClient(mopt)
	// network errors are not fatal, paho keeps reconnecting
	if token := self.m.Connect(); token.Wait() && token.Error() != nil {
		self.log.Errorf("tele mqtt connect broker=%s err=%v", teleConfig.MqttBroker, token.Error())
	}
	return nil
}

func (self *transportMqtt) Close() {
	if self.m == nil {
		return
	}
	self.log.Infof("mqtt disconnect")
	self.m.Publish(self.topicConnect, 1, true, []byte{0x00}).WaitTimeout(defaultPublishTimeout)
	self.m.Disconnect(uint(time.Second / time.Millisecond))
}

func (self *transportMqtt) SendState(payload []byte) bool {
	self.log.Debugf("mqtt publish state payload=%s", payload)
	return self.publish(self.topicState, true, payload)
}

func (self *transportMqtt) SendTelemetry(payload []byte) bool {
	self.log.Debugf("mqtt publish telemetry payload=%s", payload)
	return self.publish(self.topicTelemetry, false, payload)
}

func (self *transportMqtt) publish(topic string, retained bool, payload []byte) bool {
	if !self.m.IsConnected() {
		return false
	}
	token := self.m.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		self.log.Errorf("mqtt publish topic=%s timeout", topic)
		return false
	}
	if err := token.Error(); err != nil {
		self.log.Errorf("mqtt publish topic=%s err=%v", topic, err)
		return false
	}
	return true
}

func (self *transportMqtt) connectLostHandler(c mqtt.Client, err error) {
	self.log.Infof("mqtt connection lost err=%v", err)
}

func (self *transportMqtt) onConnectHandler(c mqtt.Client) {
	self.log.Infof("mqtt connect")
	c.Publish(self.topicConnect, 1, true, []byte{0x01})
}
