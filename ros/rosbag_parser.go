package ros

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

// AllMessagesForTopic returns all messages for a specific topic in the ros bag. Each message has
// a "meta" and a "data" entry.
func AllMessagesForTopic(rb *rosbag.RosBag, topic string) ([]map[string]interface{}, error) {
	withSlash := "/" + strings.TrimPrefix(topic, "/")
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return t == withSlash },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	msgs := rb.TopicsAsJSON[strings.TrimPrefix(topic, "/")]
	if msgs == nil {
		return nil, errors.Errorf("no messages for topic %s", topic)
	}

	all := []map[string]interface{}{}

	for {
		data, err := msgs.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		message := map[string]interface{}{}
		err = json.Unmarshal(data, &message)
		if err != nil {
			return nil, err
		}

		all = append(all, message)
	}

	return all, nil
}

// DecodeJointState converts one bag message, as returned by AllMessagesForTopic, into a JointState.
func DecodeJointState(message map[string]interface{}) (JointState, error) {
	var js JointState
	data, ok := message["data"]
	if !ok {
		return js, errors.New("bag message has no data")
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &js,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return js, err
	}
	if err := decoder.Decode(data); err != nil {
		return js, errors.Wrap(err, "malformed joint state")
	}
	return js, nil
}

// JointStatesFromBag reads every /joint_states message in a bag file.
func JointStatesFromBag(filename string) ([]JointState, error) {
	rb, err := ReadBag(filename)
	if err != nil {
		return nil, err
	}
	msgs, err := AllMessagesForTopic(rb, JointStatesTopic)
	if err != nil {
		return nil, err
	}
	states := make([]JointState, 0, len(msgs))
	for i, msg := range msgs {
		js, err := DecodeJointState(msg)
		if err != nil {
			return nil, errors.Wrapf(err, "message %d", i)
		}
		states = append(states, js)
	}
	return states, nil
}

// Waypoints extracts the position vectors of states ordered by names. Joints missing from a
// state are an error; extra joints are ignored.
func Waypoints(states []JointState, names []string) ([][]float64, error) {
	waypoints := make([][]float64, 0, len(states))
	for i, js := range states {
		index := make(map[string]int, len(js.Name))
		for k, n := range js.Name {
			index[n] = k
		}
		wp := make([]float64, len(names))
		for j, name := range names {
			k, ok := index[name]
			if !ok && len(js.Name) == 0 && j < len(js.Position) {
				// unnamed positions are taken in chain order
				k, ok = j, true
			}
			if !ok || k >= len(js.Position) {
				return nil, errors.Errorf("joint state %d has no position for joint %q", i, name)
			}
			wp[j] = js.Position[k]
		}
		waypoints = append(waypoints, wp)
	}
	return waypoints, nil
}
