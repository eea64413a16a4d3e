package constant

// Message status
const (
	MsgStatusSent = 1 // Sent
)

// Conversation defaults
const (
	DefaultLastMessage = "New Chat"
	MetadataTitleKey   = "title"
)

// Default collection names
const (
	DefaultConversationCollection = "conversations"
	DefaultMessageCollection      = "messages"
)

// Store drivers
const (
	DriverFirestore = "firestore"
	DriverMongo     = "mongo"
	DriverMySQL     = "mysql"
	DriverRedis     = "redis"
	DriverMemory    = "memory"
)

// Pagination
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyConversation     = "%s:doc:%s"      // {collection}:doc:{conversation_id}
	redisKeyConversationAll  = "%s:all"         // {collection}:all
	redisKeyUserConversation = "%s:user:%s"     // {collection}:user:{user_id}
	redisKeyMessage          = "%s:doc:%s"      // {collection}:doc:{message_id}
	redisKeyConvMessages     = "%s:timeline:%s" // {collection}:timeline:{conversation_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "chat:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyConversation() string     { return redisKeyPrefix + redisKeyConversation }
func RedisKeyConversationAll() string  { return redisKeyPrefix + redisKeyConversationAll }
func RedisKeyUserConversation() string { return redisKeyPrefix + redisKeyUserConversation }
func RedisKeyMessage() string          { return redisKeyPrefix + redisKeyMessage }
func RedisKeyConvMessages() string     { return redisKeyPrefix + redisKeyConvMessages }
